package config

import (
	"io/ioutil"

	log "github.com/sirupsen/logrus"
	yaml "gopkg.in/yaml.v2"
)

// Config holds the settings a registration attempt needs to reach and
// authenticate against the identity service.
type Config struct {
	Tel                       string              `yaml:"tel"`                       // Our telephone number in E.164 form
	UUID                      string              `yaml:"uuid" default:"notset"`     // The account identifier issued at registration
	Server                    string              `yaml:"server"`                    // The identity service URL
	ChallengeSocket           string              `yaml:"challengeSocket"`           // Websocket origin delivering push challenge tokens
	RootCA                    string              `yaml:"rootCA"`                    // The TLS signing certificate of the server we connect to
	ProxyServer               string              `yaml:"proxy"`                     // HTTP Proxy URL if one is being used
	VerificationType          string              `yaml:"verificationType"`          // Code verification method during registration (SMS/VOICE)
	LogLevel                  string              `yaml:"loglevel"`                  // Verbosity of the logging messages
	UserAgent                 string              `yaml:"userAgent"`                 // Override for the default HTTP User Agent header field
	AccountCapabilities       AccountCapabilities `yaml:"accountCapabilities"`       // Which optional service features this install advertises
	DiscoverableByPhoneNumber bool                `yaml:"discoverableByPhoneNumber"` // If the user should be found by his phone number
	ProfileKey                []byte              `yaml:"profileKey"`                // Random per-account key the unidentified-access key is derived from
	Name                      string              `yaml:"name"`                      // The username
	FcmToken                  string              `yaml:"fcmToken"`                  // Push token, empty when the install has no push transport
	MCC                       string              `yaml:"mcc"`                       // Mobile country code, improves SMS routing
	MNC                       string              `yaml:"mnc"`                       // Mobile network code, improves SMS routing
}

// AccountCapabilities describes what functions this client supports
type AccountCapabilities struct {
	Gv2               bool `json:"gv2" yaml:"gv2"`
	SenderKey         bool `json:"senderKey" yaml:"senderKey"`
	AnnouncementGroup bool `json:"announcementGroup" yaml:"announcementGroup"`
	ChangeNumber      bool `json:"changeNumber" yaml:"changeNumber"`
	Gv1Migration      bool `json:"gv1-migration" yaml:"gv1-migration"`
}

// ReadConfig reads a YAML config file
func ReadConfig(fileName string) (*Config, error) {
	b, err := ioutil.ReadFile(fileName)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	err = yaml.Unmarshal(b, cfg)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// WriteConfig saves a config to a file
func WriteConfig(filename string, cfg *Config) error {
	b, err := yaml.Marshal(cfg)
	if err != nil {
		log.Errorln("[registration] WriteConfig", err)
		return err
	}
	return ioutil.WriteFile(filename, b, 0600)
}
