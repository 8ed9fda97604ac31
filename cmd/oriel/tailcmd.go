package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/coder/websocket"

	"github.com/oriel-shell/oriel/pkg/devserver"
)

const dialTimeout = 10 * time.Second

// runTail connects to a running dev instance's event stream and renders
// it in a terminal viewport until the user quits.
func runTail(addr, token string) error {
	if addr == "" {
		return fmt.Errorf("oriel: tail: -addr is required (the dev instance prints it at startup)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn, err := dialEvents(ctx, addr, token)
	if err != nil {
		return fmt.Errorf("oriel: tail: connect %s: %w", addr, err)
	}
	defer func() { _ = conn.CloseNow() }()

	// Events carry arbitrary payloads; the default frame limit is too small.
	conn.SetReadLimit(1 << 20)

	p := tea.NewProgram(newTailModel(addr), tea.WithAltScreen())

	// Reader goroutine: only ever calls p.Send, never touches model state.
	go func() {
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				p.Send(streamClosedMsg{err: err})
				return
			}
			var f frame
			if err := json.Unmarshal(data, &f); err != nil {
				continue
			}
			p.Send(frameMsg{frame: f})
		}
	}()

	_, err = p.Run()
	return err
}

func dialEvents(ctx context.Context, addr, token string) (*websocket.Conn, error) {
	u := url.URL{Scheme: "ws", Host: addr, Path: devserver.EventsPath}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, resp, err := websocket.Dial(dialCtx, u.String(), nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("token rejected (compare -token with the dev instance log)")
		}
		return nil, err
	}
	return conn, nil
}
