package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rentatutor/rentatutor/internal/live"
	"github.com/rentatutor/rentatutor/internal/market"
	"github.com/rentatutor/rentatutor/internal/navigator"
)

const feedWriteTimeout = 5 * time.Second

// upgrader keeps gorilla's same-origin check.
var upgrader = websocket.Upgrader{
	HandshakeTimeout: 10 * time.Second,
}

// activeSession returns the visitor's live session or ErrNoActiveSession.
func activeSession(r *http.Request) (*live.Session, error) {
	sess := visitorFrom(r.Context()).Nav.Session()
	if sess == nil {
		return nil, navigator.ErrNoActiveSession
	}
	return sess, nil
}

func (h *Handler) handleInstant(w http.ResponseWriter, r *http.Request) {
	minutes, _ := strconv.Atoi(r.FormValue("duration"))
	req, err := market.NewSessionRequest(r.FormValue("subject"), minutes)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sess, err := visitorFrom(r.Context()).Nav.StartSession(market.Match(req))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	slog.Info("instant session started", "session_id", sess.ID(), "subject", req.Subject, "minutes", req.DurationMinutes)
	h.redirectHome(w, r)
}

func (h *Handler) handleSessionMessage(w http.ResponseWriter, r *http.Request) {
	sess, err := activeSession(r)
	if err == nil {
		err = sess.SendMessage(r.FormValue("text"))
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.redirectHome(w, r)
}

func (h *Handler) handleSessionEnd(w http.ResponseWriter, r *http.Request) {
	sess, err := activeSession(r)
	if err == nil {
		err = sess.End()
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.redirectHome(w, r)
}

func (h *Handler) handleSessionRating(w http.ResponseWriter, r *http.Request) {
	sess, err := activeSession(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	stars := 0
	if s := r.FormValue("stars"); s != "" {
		if stars, err = strconv.Atoi(s); err != nil {
			h.fail(w, r, live.ErrInvalidRating)
			return
		}
	}
	if err := sess.SubmitRating(stars, r.FormValue("feedback")); err != nil {
		h.fail(w, r, err)
		return
	}
	h.done(w, r, market.Success(market.NoticeRatingThanks))
}

func (h *Handler) handleSessionMute(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, (*live.Session).ToggleMute)
}

func (h *Handler) handleSessionCamera(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, (*live.Session).ToggleCamera)
}

func (h *Handler) toggle(w http.ResponseWriter, r *http.Request, flip func(*live.Session) (bool, error)) {
	sess, err := activeSession(r)
	if err == nil {
		_, err = flip(sess)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.redirectHome(w, r)
}

// handleSessionState serves the live session as JSON for polling clients.
func (h *Handler) handleSessionState(w http.ResponseWriter, r *http.Request) {
	sess, err := activeSession(r)
	if err != nil {
		http.Error(w, "no active session", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(sess.Snapshot()); err != nil {
		slog.Error("failed to encode session state", "error", err)
	}
}

// handleSessionFeed streams lifecycle events over a websocket until the
// session closes or the browser goes away. Only this goroutine writes to
// the connection; a reader goroutine notices the peer closing.
func (h *Handler) handleSessionFeed(w http.ResponseWriter, r *http.Request) {
	sess, err := activeSession(r)
	if err != nil {
		http.Error(w, "no active session", http.StatusNotFound)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	events, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// The client only reloads on non-tick events, so the opening frame is a tick.
	if err := writeEvent(conn, live.Event{Kind: live.EventTick, Snapshot: sess.Snapshot()}); err != nil {
		return
	}
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session over"))
				return
			}
			if err := writeEvent(conn, ev); err != nil {
				slog.Debug("session feed write failed", "session_id", sess.ID(), "error", err)
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func writeEvent(conn *websocket.Conn, ev live.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}
