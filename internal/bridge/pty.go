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

package bridge

import (
	"context"
	"os"
	"os/exec"
	"syscall"

	"github.com/creack/pty"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	ptyInitialCols = 80
	ptyInitialRows = 24
	ptyReadChunk   = 1024
	ptyQueueDepth  = 100
)

var ptyShells = []string{"/bin/bash", "/bin/sh"}

// PTY bridges a browser socket to a locally spawned shell running
// behind a pseudo-terminal. Authorization for a PTY session is the
// caller's responsibility: PTY itself performs no ownership check
// beyond the surrounding session (spec.md §4.4).
type PTY struct {
	logger *logrus.Entry
}

// NewPTY returns a PTY bridge.
func NewPTY(logger *logrus.Entry) *PTY {
	return &PTY{logger: logger}
}

// Serve spawns a shell behind a pseudo-terminal sized 24x80 and relays
// bytes between conn and the PTY master until either side closes.
// Serve always closes conn before returning.
func (p *PTY) Serve(ctx context.Context, conn *websocket.Conn) error {
	defer conn.Close()

	cmd, master, err := spawnShell(ctx)
	if err != nil {
		writeErrorFrame(conn, err.Error())
		return err
	}
	defer master.Close()

	done := make(chan error, 2)
	queue := make(chan []byte, ptyQueueDepth)

	// Blocking reader task: the PTY master only offers a synchronous
	// Read, so it runs on its own goroutine and hands chunks to the
	// socket writer through a bounded queue. A full queue means the
	// socket side is too slow; the reader drops the chunk rather than
	// block indefinitely on a wedged client.
	go func() {
		buf := make([]byte, ptyReadChunk)
		for {
			n, err := master.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				select {
				case queue <- chunk:
				default:
					p.logger.Warn("pty bridge: socket queue full, dropping chunk")
				}
			}
			if err != nil {
				done <- err
				return
			}
		}
	}()

	go func() {
		for {
			select {
			case chunk, ok := <-queue:
				if !ok {
					return
				}
				if err := conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
					done <- err
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	// Socket's incoming side writes frames to the PTY master
	// synchronously; a close frame ends the session.
	go func() {
		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				done <- err
				return
			}
			switch msgType {
			case websocket.BinaryMessage, websocket.TextMessage:
				if _, err := master.Write(data); err != nil {
					done <- err
					return
				}
			case websocket.CloseMessage:
				done <- nil
				return
			}
		}
	}()

	var waitErr error
	select {
	case <-done:
	case <-ctx.Done():
		waitErr = ctx.Err()
	}
	_ = cmd.Process.Kill()
	_, _ = cmd.Process.Wait()
	return waitErr
}

func spawnShell(ctx context.Context) (*exec.Cmd, *os.File, error) {
	var lastErr error
	for _, shell := range ptyShells {
		cmd := exec.CommandContext(ctx, shell)
		cmd.SysProcAttr = &syscall.SysProcAttr{Setctty: true, Setsid: true}
		master, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: ptyInitialRows, Cols: ptyInitialCols})
		if err != nil {
			lastErr = err
			continue
		}
		return cmd, master, nil
	}
	return nil, nil, lastErr
}
