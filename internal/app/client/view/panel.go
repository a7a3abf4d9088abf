package view

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
)

var ErrNoReload = errors.New("nothing to reload")

// Panel - навигация терминального клиента: переход ко входу и блокирующая ошибка запуска
type Panel struct {
	out io.Writer

	mu     sync.Mutex
	reload func(ctx context.Context) error
	login  bool
}

func NewPanel(out io.Writer) *Panel {
	return &Panel{out: out}
}

func (p *Panel) RedirectToLogin() {
	p.mu.Lock()
	p.login = true
	p.mu.Unlock()

	color.New(color.FgYellow).Fprintln(p.out, "Вход не выполнен. Войдите командой: journal auth login")
}

// LoginRequested сообщает, запрашивался ли переход ко входу
func (p *Panel) LoginRequested() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.login
}

func (p *Panel) ShowFatal(err error, reload func(ctx context.Context) error) {
	p.mu.Lock()
	p.reload = reload
	p.mu.Unlock()

	bold := color.New(color.FgRed, color.Bold)
	bold.Fprintln(p.out, "Не удалось запустить журнал")
	color.New(color.FgRed).Fprintf(p.out, "  Причина: %v\n", err)
	color.New(color.FgCyan).Fprintln(p.out, "  Нажмите Enter, чтобы повторить запуск")
}

// Reload запускает сохраненное действие перезагрузки
func (p *Panel) Reload(ctx context.Context) error {
	p.mu.Lock()
	reload := p.reload
	p.reload = nil
	p.mu.Unlock()

	if reload == nil {
		return ErrNoReload
	}
	return reload(ctx)
}

// PromptReload ждет подтверждения пользователя и перезапускает загрузку
func (p *Panel) PromptReload(ctx context.Context, in io.Reader) error {
	line := make(chan error, 1)
	go func() {
		_, err := bufio.NewReader(in).ReadString('\n')
		line <- err
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-line:
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read confirmation: %w", err)
		}
		if errors.Is(err, io.EOF) {
			return ErrNoReload
		}
	}
	return p.Reload(ctx)
}
