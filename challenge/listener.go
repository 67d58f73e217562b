package challenge

import (
	"crypto/tls"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/signal-golang/registration/rootCa"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 25 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Challenge delivery endpoint on the notification socket.
	websocketPath = "/v1/challenge"
)

// pushMessage is the notification envelope the socket delivers. Only
// challenge frames matter here; everything else is ignored.
type pushMessage struct {
	Type      string `json:"type,omitempty"`
	Challenge string `json:"challenge,omitempty"`
}

// Listener subscribes to the out-of-band notification socket and feeds
// delivered challenge tokens into a Bus. Zero or more deliveries are
// tolerated; each registered waiter consumes at most the first.
type Listener struct {
	bus      *Bus
	ws       *websocket.Conn
	stopping bool
}

func NewListener(bus *Bus) *Listener {
	return &Listener{bus: bus}
}

// Start connects to originURL and keeps reading until Stop is called,
// reconnecting with a small backoff on read failures.
func (l *Listener) Start(originURL string) {
	go func() {
		for !l.stopping {
			err := l.run(originURL)
			if err != nil && !l.stopping {
				log.WithFields(log.Fields{
					"error": err,
				}).Error("[registration] challenge socket failed, reconnecting")
				time.Sleep(2 * time.Second)
			}
		}
	}()
}

// Stop tears the connection down; the read loop exits and does not
// reconnect.
func (l *Listener) Stop() {
	l.stopping = true
	if l.ws != nil {
		l.ws.SetWriteDeadline(time.Now().Add(writeWait))
		l.ws.WriteMessage(websocket.CloseMessage, []byte{})
		l.ws.Close()
	}
}

func (l *Listener) run(originURL string) error {
	d := &websocket.Dialer{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		TLSClientConfig: &tls.Config{
			RootCAs: rootCa.RootCA,
		},
	}

	ws, _, err := d.Dial(originURL+websocketPath, nil)
	if err != nil {
		return err
	}
	l.ws = ws
	defer ws.Close()

	log.Debugf("[registration] challenge socket connected")

	done := make(chan struct{})
	defer close(done)
	go l.pingWorker(ws, done)

	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, bmsg, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debugf("[registration] challenge socket UnexpectedCloseError: %s", err)
			}
			return err
		}
		msg := &pushMessage{}
		if err := json.Unmarshal(bmsg, msg); err != nil {
			log.WithFields(log.Fields{
				"error": err,
			}).Error("[registration] failed to unmarshal challenge frame")
			continue
		}
		if msg.Challenge == "" {
			log.Debugln("[registration] ignoring non-challenge frame", msg.Type)
			continue
		}
		l.bus.Publish(msg.Challenge)
	}
}

// pingWorker keeps the connection alive. Only this goroutine writes.
func (l *Listener) pingWorker(ws *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.WithFields(log.Fields{
					"error": err,
				}).Error("[registration] failed to send ping")
				return
			}
		case <-done:
			return
		}
	}
}
