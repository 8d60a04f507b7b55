// Package browser attaches to a chat web application running in Chrome and exposes its
// conversation list through the Chrome DevTools accessibility tree.
package browser

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// ErrPageNotFound is returned when no open tab matches the configured patterns.
var ErrPageNotFound = errors.New("chat page not found")

// Config holds browser configuration.
type Config struct {
	DebuggerURL      string   `yaml:"debugger_url"`
	Launch           []string `yaml:"launch"`
	Headless         bool     `yaml:"headless"`
	UserDataDir      string   `yaml:"user_data_dir"`
	PageTitlePattern string   `yaml:"page_title_pattern"`
	PageURLPattern   string   `yaml:"page_url_pattern"`
	ListName         string   `yaml:"list_name"`
	LoadMorePattern  string   `yaml:"load_more_pattern"`
	WheelStepPixels  int      `yaml:"wheel_step_pixels"`
	ControlFile      string   `yaml:"control_file"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		PageTitlePattern: "(?i)(微信|wechat)",
		ListName:         "Messages",
		LoadMorePattern:  "^(Load more|View more|查看更多)",
		WheelStepPixels:  120,
	}
}

// GetWheelStepPixels returns the pixel distance of one wheel notch.
func (c Config) GetWheelStepPixels() int {
	if c.WheelStepPixels <= 0 {
		return 120
	}
	return c.WheelStepPixels
}

// GetListName returns the accessible name of the conversation list.
func (c Config) GetListName() string {
	if c.ListName == "" {
		return "Messages"
	}
	return c.ListName
}

// SessionManager owns the Chrome connection.
type SessionManager struct {
	cfg        Config
	logger     *zap.Logger
	mu         sync.RWMutex
	browser    *rod.Browser
	controlURL string
}

// NewSessionManager creates a new session manager.
func NewSessionManager(cfg Config, logger *zap.Logger) *SessionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionManager{cfg: cfg, logger: logger}
}

// Start connects to an existing Chrome or launches a new one.
func (m *SessionManager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browser != nil {
		if _, err := m.browser.Version(); err == nil {
			return nil
		}
		m.logger.Warn("stale browser connection detected, reconnecting")
		_ = m.browser.Close()
		m.browser = nil
		m.controlURL = ""
	}

	controlURL := m.cfg.DebuggerURL
	if controlURL == "" {
		url, err := m.launch()
		if err != nil {
			return err
		}
		controlURL = url
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}

	m.browser = browser
	m.controlURL = controlURL
	m.logger.Debug("browser connected", zap.String("control_url", controlURL))
	return nil
}

func (m *SessionManager) launch() (string, error) {
	l := launcher.New().Headless(m.cfg.Headless)
	if m.cfg.UserDataDir != "" {
		l = l.UserDataDir(m.cfg.UserDataDir)
	}
	if len(m.cfg.Launch) > 0 {
		l = l.Bin(m.cfg.Launch[0])
		for _, rawFlag := range m.cfg.Launch[1:] {
			name, val, hasVal := strings.Cut(strings.TrimLeft(rawFlag, "-"), "=")
			if hasVal {
				l = l.Set(flags.Flag(name), val)
			} else {
				l = l.Set(flags.Flag(name))
			}
		}
	}
	url, err := l.Launch()
	if err != nil {
		return "", fmt.Errorf("launch chrome: %w", err)
	}
	return url, nil
}

func (m *SessionManager) ensureStarted(ctx context.Context) error {
	m.mu.RLock()
	if m.browser != nil {
		m.mu.RUnlock()
		return nil
	}
	m.mu.RUnlock()
	return m.Start(ctx)
}

// ControlURL returns the WebSocket debugger URL.
func (m *SessionManager) ControlURL() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.controlURL
}

// Shutdown closes the browser connection. A browser we attached to via DebuggerURL is
// left running.
func (m *SessionManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var err error
	if m.browser != nil {
		if m.cfg.DebuggerURL == "" {
			err = m.browser.Close()
		}
		m.browser = nil
	}
	m.controlURL = ""
	return err
}

// OpenPage opens url in a new tab and waits for it to load.
func (m *SessionManager) OpenPage(ctx context.Context, url string) (*rod.Page, error) {
	if err := m.ensureStarted(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	b := m.browser
	m.mu.RUnlock()
	if b == nil {
		return nil, errors.New("browser not connected")
	}

	page, err := b.Context(ctx).Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load %s: %w", url, err)
	}
	return page, nil
}

// FindPage returns the first open tab whose title or URL matches the configured patterns.
func (m *SessionManager) FindPage(ctx context.Context) (*rod.Page, error) {
	if err := m.ensureStarted(ctx); err != nil {
		return nil, err
	}
	titleRe, urlRe, err := m.pagePatterns()
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	b := m.browser
	m.mu.RUnlock()
	if b == nil {
		return nil, errors.New("browser not connected")
	}

	pages, err := b.Context(ctx).Pages()
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	for _, p := range pages {
		info, err := p.Info()
		if err != nil {
			continue
		}
		if matches(titleRe, info.Title) || matches(urlRe, info.URL) {
			m.logger.Debug("chat page found", zap.String("title", info.Title), zap.String("url", info.URL))
			return p, nil
		}
	}
	return nil, ErrPageNotFound
}

func (m *SessionManager) pagePatterns() (*regexp.Regexp, *regexp.Regexp, error) {
	if m.cfg.PageTitlePattern == "" && m.cfg.PageURLPattern == "" {
		return nil, nil, errors.New("page_title_pattern or page_url_pattern required")
	}
	titleRe, err := compileOptional(m.cfg.PageTitlePattern)
	if err != nil {
		return nil, nil, fmt.Errorf("page_title_pattern: %w", err)
	}
	urlRe, err := compileOptional(m.cfg.PageURLPattern)
	if err != nil {
		return nil, nil, fmt.Errorf("page_url_pattern: %w", err)
	}
	return titleRe, urlRe, nil
}

// alive reports whether both the browser and the given target still answer.
func (m *SessionManager) alive(targetID proto.TargetTargetID) bool {
	m.mu.RLock()
	b := m.browser
	m.mu.RUnlock()
	if b == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	b = b.Context(ctx)
	if _, err := b.Version(); err != nil {
		return false
	}
	if targetID == "" {
		return true
	}
	_, err := proto.TargetGetTargetInfo{TargetID: targetID}.Call(b)
	return err == nil
}

func compileOptional(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	return regexp.Compile(pattern)
}

func matches(re *regexp.Regexp, s string) bool {
	return re != nil && s != "" && re.MatchString(s)
}
