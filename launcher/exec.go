package launcher

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	browsercore "github.com/kuromi/browser-core"
)

// ExecAllocator starts a new browser process on the host machine for each
// Allocate call: build a flag set, pick (or generate) a user-data-dir,
// start the process, and scrape its stdout for the "DevTools listening on"
// line to learn the WebSocket URL to connect to.
type ExecAllocator struct {
	execPath  string
	initFlags map[string]any
	initEnv   []string

	combinedOutputWriter io.Writer

	wg sync.WaitGroup
}

// ExecAllocatorOption configures an ExecAllocator.
type ExecAllocatorOption func(*ExecAllocator)

// NewExecAllocator builds an ExecAllocator from the given options.
func NewExecAllocator(opts ...ExecAllocatorOption) *ExecAllocator {
	a := &ExecAllocator{initFlags: make(map[string]any)}
	for _, o := range opts {
		o(a)
	}
	if a.execPath == "" {
		a.execPath = findExecPath()
	}
	return a
}

// DefaultExecAllocatorOptions is a headless, automation-friendly flag
// set with the background-throttling and first-run surfaces all disabled.
var DefaultExecAllocatorOptions = [...]ExecAllocatorOption{
	NoFirstRun,
	NoDefaultBrowserCheck,
	Headless,

	Flag("disable-background-networking", true),
	Flag("enable-features", "NetworkService,NetworkServiceInProcess"),
	Flag("disable-background-timer-throttling", true),
	Flag("disable-backgrounding-occluded-windows", true),
	Flag("disable-breakpad", true),
	Flag("disable-client-side-phishing-detection", true),
	Flag("disable-default-apps", true),
	Flag("disable-dev-shm-usage", true),
	Flag("disable-extensions", true),
	Flag("disable-hang-monitor", true),
	Flag("disable-ipc-flooding-protection", true),
	Flag("disable-popup-blocking", true),
	Flag("disable-prompt-on-repost", true),
	Flag("disable-renderer-backgrounding", true),
	Flag("disable-sync", true),
	Flag("force-color-profile", "srgb"),
	Flag("metrics-recording-only", true),
	Flag("safebrowsing-disable-auto-update", true),
	Flag("enable-automation", true),
	Flag("password-store", "basic"),
	Flag("use-mock-keychain", true),
}

// Flag passes --name=value (or bare --name for value==true) to the browser.
func Flag(name string, value any) ExecAllocatorOption {
	return func(a *ExecAllocator) { a.initFlags[name] = value }
}

// Env appends NAME=value entries to the spawned process's environment.
func Env(vars ...string) ExecAllocatorOption {
	return func(a *ExecAllocator) { a.initEnv = append(a.initEnv, vars...) }
}

// ExecPath selects the browser binary to run, resolved via exec.LookPath
// when it isn't already absolute.
func ExecPath(path string) ExecAllocatorOption {
	return func(a *ExecAllocator) {
		if full, _ := exec.LookPath(path); full != "" {
			a.execPath = full
		} else {
			a.execPath = path
		}
	}
}

// UserDataDir pins the profile directory Chrome uses; omit it to get a
// temporary one that is removed when the process exits.
func UserDataDir(dir string) ExecAllocatorOption { return Flag("user-data-dir", dir) }

// NoSandbox disables the sandbox, needed when running as root.
func NoSandbox(a *ExecAllocator) { Flag("no-sandbox", true)(a) }

// NoFirstRun disables the first-run dialog.
func NoFirstRun(a *ExecAllocator) { Flag("no-first-run", true)(a) }

// NoDefaultBrowserCheck disables the default-browser prompt.
func NoDefaultBrowserCheck(a *ExecAllocator) { Flag("no-default-browser-check", true)(a) }

// Headless runs without a visible window, also hiding scrollbars and muting
// audio (matches Puppeteer's default headless flag set).
func Headless(a *ExecAllocator) {
	Flag("headless", true)(a)
	Flag("hide-scrollbars", true)(a)
	Flag("mute-audio", true)(a)
}

// CombinedOutput mirrors the process's stdout/stderr to w, including the
// lines read while waiting for the WebSocket URL line.
func CombinedOutput(w io.Writer) ExecAllocatorOption {
	return func(a *ExecAllocator) { a.combinedOutputWriter = w }
}

func findExecPath() string {
	for _, path := range [...]string{
		"headless_shell",
		"headless-shell",
		"chromium",
		"chromium-browser",
		"google-chrome",
		"google-chrome-stable",
		"google-chrome-beta",
		"google-chrome-unstable",
		"/usr/bin/google-chrome",
		"chrome",
		"chrome.exe",
		`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
		`C:\Program Files\Google\Chrome\Application\chrome.exe`,
		filepath.Join(os.Getenv("USERPROFILE"), `AppData\Local\Google\Chrome\Application\chrome.exe`),
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	} {
		if found, err := exec.LookPath(path); err == nil {
			return found
		}
	}
	return "google-chrome"
}

// Allocate satisfies Allocator: it starts the browser process, waits for it
// to print its DevTools WebSocket URL, then dials it with browsercore.Connect.
func (a *ExecAllocator) Allocate(ctx context.Context, opts ...browsercore.BrowserOption) (*browsercore.Browser, error) {
	var args []string
	for name, value := range a.initFlags {
		switch v := value.(type) {
		case string:
			args = append(args, fmt.Sprintf("--%s=%s", name, v))
		case bool:
			if v {
				args = append(args, fmt.Sprintf("--%s", name))
			}
		default:
			return nil, fmt.Errorf("launcher: invalid flag value for %q", name)
		}
	}

	removeDir := false
	dataDir, ok := a.initFlags["user-data-dir"].(string)
	if !ok {
		tempDir, err := os.MkdirTemp("", "browsercore-launcher")
		if err != nil {
			return nil, err
		}
		args = append(args, "--user-data-dir="+tempDir)
		dataDir = tempDir
		removeDir = true
	}
	if _, ok := a.initFlags["no-sandbox"]; !ok && os.Getuid() == 0 {
		args = append(args, "--no-sandbox")
	}
	if _, ok := a.initFlags["remote-debugging-port"]; !ok {
		args = append(args, "--remote-debugging-port=0")
	}
	args = append(args, "about:blank")

	procCtx, cancelProc := context.WithCancel(context.Background())
	cmd := exec.CommandContext(procCtx, a.execPath, args...)
	defer func() {
		if removeDir && cmd.Process == nil {
			os.RemoveAll(dataDir)
		}
	}()

	allocateCmdOptions(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancelProc()
		return nil, err
	}
	cmd.Stderr = cmd.Stdout
	if len(a.initEnv) > 0 {
		cmd.Env = append(os.Environ(), a.initEnv...)
	}

	if err := cmd.Start(); err != nil {
		cancelProc()
		return nil, err
	}

	a.wg.Add(1)
	go func() {
		cmd.Wait()
		if removeDir {
			os.RemoveAll(dataDir)
		}
		a.wg.Done()
	}()

	const wsURLReadTimeout = 20 * time.Second
	wsURLChan := make(chan string, 1)
	errChan := make(chan error, 1)
	go func() {
		wsURL, rerr := readDevToolsURL(stdout, a.combinedOutputWriter)
		if rerr != nil {
			errChan <- rerr
			return
		}
		wsURLChan <- wsURL
	}()

	var wsURL string
	select {
	case wsURL = <-wsURLChan:
	case err = <-errChan:
	case <-time.After(wsURLReadTimeout):
		err = errors.New("launcher: timed out waiting for DevTools websocket URL")
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		cancelProc()
		return nil, err
	}

	b, err := browsercore.Connect(ctx, wsURL, opts...)
	if err != nil {
		cancelProc()
		return nil, err
	}

	go func() {
		<-ctx.Done()
		_ = b.Close(context.Background())
		cancelProc()
	}()
	return b, nil
}

// readDevToolsURL scrapes the "DevTools listening on ws://..." line chrome
// prints to stdout/stderr on startup, forwarding the rest of the output to
// forward if set.
func readDevToolsURL(rc io.ReadCloser, forward io.Writer) (string, error) {
	prefix := []byte("DevTools listening on")
	var accumulated bytes.Buffer
	bufr := bufio.NewReader(rc)
	for {
		line, err := bufr.ReadBytes('\n')
		if err != nil {
			return "", fmt.Errorf("launcher: browser failed to start:\n%s", accumulated.Bytes())
		}
		if forward != nil {
			if _, err := forward.Write(line); err != nil {
				return "", err
			}
		}
		if bytes.HasPrefix(line, prefix) {
			wsURL := bytes.TrimSpace(line[len(prefix):])
			if forward != nil {
				go io.Copy(forward, bufr)
			} else {
				rc.Close()
			}
			return string(wsURL), nil
		}
		accumulated.Write(line)
	}
}

// Wait satisfies Allocator.
func (a *ExecAllocator) Wait() { a.wg.Wait() }
