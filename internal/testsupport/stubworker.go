package testsupport

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

const (
	// StubWorkerEnvVar marks a re-executed test binary as the stub worker.
	StubWorkerEnvVar = "GO_WANT_HELPER_PROCESS"
	// StubModeEnvVar selects the stub worker behaviour.
	StubModeEnvVar = "FICTIONBRIDGE_STUB_MODE"
)

// Stub worker modes.
const (
	// StubModeEcho answers requests according to their method (see RunStubWorker).
	StubModeEcho = "echo"
	// StubModeExitImmediately exits with status 1 before reading anything.
	StubModeExitImmediately = "exit-immediately"
	// StubModeCloseStdout closes stdout and keeps running until killed.
	StubModeCloseStdout = "close-stdout"
)

// StubWorkerArgs are the arguments that make a test binary run only
// TestHelperProcess.
func StubWorkerArgs() []string {
	return []string{"-test.run=TestHelperProcess", "--"}
}

// StubWorkerEnv returns the environment entries selecting mode.
func StubWorkerEnv(mode string) map[string]string {
	return map[string]string{
		StubWorkerEnvVar: "1",
		StubModeEnvVar:   mode,
	}
}

// MaybeRunStubWorker turns the current process into the stub worker when the
// marker variable is set. It never returns in that case.
func MaybeRunStubWorker() {
	if os.Getenv(StubWorkerEnvVar) != "1" {
		return
	}
	switch os.Getenv(StubModeEnvVar) {
	case StubModeExitImmediately:
		os.Exit(1)
	case StubModeCloseStdout:
		_ = os.Stdout.Close()
		time.Sleep(time.Minute)
	default:
		RunStubWorker()
	}
	os.Exit(0)
}

type stubRequest struct {
	ID     uint64          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

type stubDelay struct {
	DelayMS int `json:"delay_ms"`
}

// RunStubWorker serves newline-delimited JSON-RPC on stdin/stdout until stdin
// closes. Requests are handled concurrently, so responses may arrive out of
// order. Methods:
//
//	echo          result {"echo": params}
//	slow          sleeps params.delay_ms, then result {"slept_ms": n}
//	notify        emits progress.update {"pct":50}, then result {"ok": true}
//	progress      emits pipeline.progress {"stage":"translate","progress":0.5}, then result {"ok": true}
//	fail          error {-32000, "boom"}
//	null          response with neither result nor error
//	garbage       emits malformed, unroutable, and unknown-id lines, then result "survived"
//	stderr        writes "warning from worker" to stderr, then result "logged"
//	env           result {"level": $FT_LOG_LEVEL, "extra": $HELPER_EXTRA}
//	health.check  result {"status": "ok"}
//	exit          exits with status 3 without answering
//
// Any other method yields -32601.
func RunStubWorker() {
	var writeMu sync.Mutex
	writeRaw := func(line []byte) {
		writeMu.Lock()
		defer writeMu.Unlock()
		_, _ = os.Stdout.Write(append(line, '\n'))
	}
	writeJSON := func(v any) {
		data, _ := json.Marshal(v)
		writeRaw(data)
	}
	reply := func(id uint64, result any) {
		writeJSON(map[string]any{"jsonrpc": "2.0", "id": id, "result": result})
	}
	replyError := func(id uint64, code int, message string) {
		writeJSON(map[string]any{"jsonrpc": "2.0", "id": id, "error": map[string]any{"code": code, "message": message}})
	}

	var wg sync.WaitGroup
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		var req stubRequest
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			writeRaw([]byte(`{"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"Parse error"}}`))
			continue
		}
		wg.Add(1)
		go func(req stubRequest) {
			defer wg.Done()
			switch req.Method {
			case "echo":
				var params any
				if len(req.Params) > 0 {
					_ = json.Unmarshal(req.Params, &params)
				}
				reply(req.ID, map[string]any{"echo": params})
			case "slow":
				var d stubDelay
				_ = json.Unmarshal(req.Params, &d)
				time.Sleep(time.Duration(d.DelayMS) * time.Millisecond)
				reply(req.ID, map[string]any{"slept_ms": d.DelayMS})
			case "notify":
				writeJSON(map[string]any{"jsonrpc": "2.0", "method": "progress.update", "params": map[string]any{"pct": 50}})
				reply(req.ID, map[string]any{"ok": true})
			case "progress":
				writeJSON(map[string]any{"jsonrpc": "2.0", "method": "pipeline.progress", "params": map[string]any{"stage": "translate", "progress": 0.5, "message": "halfway"}})
				reply(req.ID, map[string]any{"ok": true})
			case "fail":
				replyError(req.ID, -32000, "boom")
			case "null":
				writeJSON(map[string]any{"jsonrpc": "2.0", "id": req.ID})
			case "garbage":
				writeRaw([]byte("this is not json"))
				writeRaw([]byte(`{"jsonrpc":"2.0","result":{"orphan":true}}`))
				writeRaw([]byte(`{"jsonrpc":"2.0","id":999999,"result":{"stale":true}}`))
				writeRaw(nil)
				reply(req.ID, "survived")
			case "stderr":
				fmt.Fprintln(os.Stderr, "warning from worker")
				reply(req.ID, "logged")
			case "env":
				reply(req.ID, map[string]string{"level": os.Getenv("FT_LOG_LEVEL"), "extra": os.Getenv("HELPER_EXTRA")})
			case "health.check":
				reply(req.ID, map[string]string{"status": "ok"})
			case "exit":
				os.Exit(3)
			default:
				replyError(req.ID, -32601, "Method not found")
			}
		}(req)
	}
	wg.Wait()
}
