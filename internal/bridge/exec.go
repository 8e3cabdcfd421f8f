/*
   Copyright 2026 The labuh authors

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

// Package bridge implements the Exec Bridge (EB) and PTY Bridge (PB)
// collaborators (spec.md §2 items 8-9, §4.4): full-duplex byte relays
// between a browser websocket and either a runtime exec stream or a
// locally spawned pseudo-terminal.
package bridge

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/HasanH47/labuh/internal/access"
	"github.com/HasanH47/labuh/internal/labuherr"
	"github.com/HasanH47/labuh/internal/runtime"
)

var execCommand = []string{"/bin/sh"}

// Exec bridges a browser socket to a container's attached exec stream.
// Every session is gated by AG: the caller must own the stack the
// container belongs to before Exec will create anything on the
// runtime.
type Exec struct {
	rp     runtime.Port
	gate   *access.Gate
	logger *logrus.Entry
}

// NewExec returns an Exec bridge wired to rp and gate.
func NewExec(rp runtime.Port, gate *access.Gate, logger *logrus.Entry) *Exec {
	return &Exec{rp: rp, gate: gate, logger: logger}
}

// Serve verifies ownership of containerID for userID, creates and
// attaches an exec session running /bin/sh inside it, and relays bytes
// between conn and the exec stream until either side closes. Detached
// exec sessions are rejected with a text error frame. Serve always
// closes conn before returning.
func (e *Exec) Serve(ctx context.Context, conn *websocket.Conn, containerID, userID string) error {
	defer conn.Close()

	if _, err := e.gate.Verify(ctx, containerID, userID); err != nil {
		writeErrorFrame(conn, err.Error())
		return err
	}

	handle, err := e.rp.ExecCreate(ctx, containerID, execCommand)
	if err != nil {
		writeErrorFrame(conn, err.Error())
		return err
	}

	stream, ok, err := e.rp.ExecAttach(ctx, handle)
	if err != nil {
		writeErrorFrame(conn, err.Error())
		return err
	}
	if !ok {
		err := labuherr.BadRequestf("exec session %s was started detached", handle.ID)
		writeErrorFrame(conn, err.Error())
		return err
	}
	defer stream.Closer.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 2)

	// runtime -> socket: every chunk forwarded as a binary frame.
	go func() {
		buf := make([]byte, 32*1024)
		for {
			n, err := stream.Reader.Read(buf)
			if n > 0 {
				if werr := conn.WriteMessage(websocket.BinaryMessage, buf[:n]); werr != nil {
					done <- werr
					return
				}
			}
			if err != nil {
				done <- err
				return
			}
		}
	}()

	// socket -> runtime: binary verbatim, text as UTF-8 bytes, close ends the bridge.
	go func() {
		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				done <- err
				return
			}
			switch msgType {
			case websocket.BinaryMessage, websocket.TextMessage:
				if _, err := stream.Writer.Write(data); err != nil {
					done <- err
					return
				}
			case websocket.CloseMessage:
				done <- nil
				return
			}
		}
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func writeErrorFrame(conn *websocket.Conn, msg string) {
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	_ = conn.WriteMessage(websocket.TextMessage, []byte("error: "+msg))
}
