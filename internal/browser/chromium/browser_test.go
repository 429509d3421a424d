//go:build unix

package chromium

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/ledger-cli/internal/config"
)

// stubChromeEnv makes the test binary act as a browser: it writes its pid to
// the named file and answers CDP over a websocket.
const stubChromeEnv = "LEDGER_STUB_CHROME_PID_FILE"

func TestMain(m *testing.M) {
	if pidFile := os.Getenv(stubChromeEnv); pidFile != "" {
		runStubChrome(pidFile)
		return
	}
	os.Exit(m.Run())
}

type stubRequest struct {
	ID        int64  `json:"id"`
	SessionID string `json:"sessionId"`
	Method    string `json:"method"`
	Params    struct {
		TargetID   string `json:"targetId"`
		Expression string `json:"expression"`
	} `json:"params"`
}

type stubReply struct {
	ID        int64          `json:"id"`
	SessionID string         `json:"sessionId,omitempty"`
	Result    map[string]any `json:"result"`
}

type stubEvent struct {
	Method string         `json:"method"`
	Params map[string]any `json:"params"`
}

func runStubChrome(pidFile string) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		os.Exit(2)
	}
	if err := os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())), 0o600); err != nil {
		os.Exit(2)
	}
	fmt.Printf("DevTools listening on ws://%s/devtools/browser/stub\n", ln.Addr())

	conn, err := ln.Accept()
	if err != nil {
		os.Exit(2)
	}
	if _, err := ws.Upgrade(conn); err != nil {
		os.Exit(2)
	}

	send := func(v any) {
		data, err := json.Marshal(v)
		if err != nil {
			os.Exit(2)
		}
		if err := wsutil.WriteServerMessage(conn, ws.OpText, data); err != nil {
			os.Exit(0)
		}
	}

	targets := 1
	for {
		data, _, err := wsutil.ReadClientData(conn)
		if err != nil {
			os.Exit(0)
		}
		var req stubRequest
		if err := json.Unmarshal(data, &req); err != nil {
			continue
		}

		result := map[string]any{}
		switch req.Method {
		case "Target.createTarget":
			targets++
			result["targetId"] = fmt.Sprintf("T%d", targets)
		case "Target.attachToTarget":
			result["sessionId"] = "S-" + req.Params.TargetID
		case "Runtime.evaluate":
			result["result"] = stubEvaluate(req.Params.Expression)
		}
		send(stubReply{ID: req.ID, SessionID: req.SessionID, Result: result})

		switch {
		case req.Method == "Target.setDiscoverTargets" && req.SessionID == "":
			send(stubEvent{Method: "Target.targetCreated", Params: map[string]any{
				"targetInfo": map[string]any{
					"targetId": "T1", "type": "page", "title": "", "url": "about:blank",
					"attached": false, "canAccessOpener": false,
				},
			}})
		case req.Method == "Browser.close":
			os.Exit(0)
		}
	}
}

func stubEvaluate(expression string) map[string]any {
	switch expression {
	case "self":
		return map[string]any{"type": "object", "className": "Window"}
	case "document.readyState":
		return map[string]any{"type": "string", "value": "complete"}
	default:
		return map[string]any{"type": "string", "value": "about:blank"}
	}
}

// launchStub starts a Browser on the stub and cancels the start context as
// soon as New returns, the way a finished command step would.
func launchStub(t *testing.T) (*Browser, int) {
	t.Helper()

	exe, err := os.Executable()
	require.NoError(t, err)
	pidFile := filepath.Join(t.TempDir(), "chrome.pid")
	t.Setenv(stubChromeEnv, pidFile)

	startCtx, cancel := context.WithCancel(context.Background())
	b, err := New(startCtx, config.BrowserConfig{Headless: true, ExecPath: exe}, 5*time.Second, zap.NewNop())
	cancel()
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = b.Shutdown(ctx)
	})

	data, err := os.ReadFile(pidFile)
	require.NoError(t, err)
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	require.NoError(t, err)
	return b, pid
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

func TestNew_ProcessOutlivesStartContext(t *testing.T) {
	_, pid := launchStub(t)

	assert.Never(t, func() bool { return !processAlive(pid) }, 500*time.Millisecond, 25*time.Millisecond,
		"the browser process must keep running after New returns")
}

func TestNewPage_TabAnswersAfterOpenContextEnds(t *testing.T) {
	b, _ := launchStub(t)

	openCtx, cancel := context.WithCancel(context.Background())
	page, err := b.NewPage(openCtx, nil)
	cancel()
	require.NoError(t, err)

	ctx, cancelURL := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancelURL()
	url, err := page.URL(ctx)
	require.NoError(t, err)
	assert.Equal(t, "about:blank", url)
}

func TestNewPage_CancelledContext(t *testing.T) {
	b, _ := launchStub(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := b.NewPage(ctx, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open tab")
}

func TestWaitForLoad_AfterClick(t *testing.T) {
	b, _ := launchStub(t)
	opened, err := b.NewPage(context.Background(), nil)
	require.NoError(t, err)
	p := opened.(*Page)

	t.Run("NavigationCommitted", func(t *testing.T) {
		p.mu.Lock()
		p.click = clickWait{pending: true, seq: p.nav.Seq(), at: time.Now()}
		p.mu.Unlock()
		p.nav.Push("https://www.example.test/orders?page=2")

		start := time.Now()
		require.NoError(t, p.WaitForLoad(context.Background(), 5*time.Second))
		assert.Less(t, time.Since(start), navigationGrace)
	})

	t.Run("InPlaceUpdate", func(t *testing.T) {
		start := time.Now()
		p.mu.Lock()
		p.click = clickWait{pending: true, seq: p.nav.Seq(), at: time.Now()}
		p.mu.Unlock()

		require.NoError(t, p.WaitForLoad(context.Background(), 5*time.Second))
		assert.GreaterOrEqual(t, time.Since(start), navigationGrace)
	})
}
