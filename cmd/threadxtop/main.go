// Command threadxtop is a live TUI inspector for a SyncPointObject shared
// between two in-process workers: one mutates it on an interval, the other
// renders its buffer header (lock holder, dirty bits, notify word) and
// current property values as they converge.
package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	threadx "github.com/lightning-js/threadx"
	"github.com/lightning-js/threadx/internal/buffer"
	"github.com/lightning-js/threadx/internal/object"
	"github.com/lightning-js/threadx/internal/router"
	"github.com/lightning-js/threadx/internal/transport"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#87CEEB"))
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#90EE90"))
	lockStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
)

// tickMsg drives one poll of the inspector's buffer header, at a rate fast
// enough to visibly catch the mutator's writes between ticks.
type tickMsg time.Time

type model struct {
	inspector *buffer.BufferStruct
	peerView  *threadx.SyncPointObject
	spin      spinner.Model
}

func (m model) Init() tea.Cmd {
	return tea.Batch(tick(), m.spin.Tick)
}

func tick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}
	case tickMsg:
		return m, tick()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m model) View() string {
	holder := m.inspector.LockHolder()
	lockLine := valueStyle.Render("unlocked")
	if holder != 0 {
		lockLine = lockStyle.Render(fmt.Sprintf("held by view %d", holder))
	}

	return fmt.Sprintf(
		"%s %s\n\n%s %s\n%s %v\n%s %d\n\n%s %v\n%s %v\n%s %q\n%s %q\n%s %v\n%s %d\n\n%s\n",
		titleStyle.Render("threadxtop"), m.spin.View(),
		labelStyle.Render("lock:"), lockLine,
		labelStyle.Render("dirty:"), m.inspector.IsDirty(),
		labelStyle.Render("notify word:"), m.inspector.NotifyValue(),
		labelStyle.Render("numProp1:"), m.peerView.NumProp1(),
		labelStyle.Render("numProp2:"), m.peerView.NumProp2(),
		labelStyle.Render("stringProp1:"), m.peerView.StringProp1(),
		labelStyle.Render("stringProp2:"), m.peerView.StringProp2(),
		labelStyle.Render("flag:"), m.peerView.Flag(),
		labelStyle.Render("counter:"), m.peerView.Counter(),
		helpStyle.Render("q to quit"),
	)
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	ta, tb := transport.NewInProcPair()

	var (
		bobSO     *threadx.SyncPointObject
		inspector *buffer.BufferStruct
	)
	ready := make(chan struct{})

	alice := router.New(router.Options{WorkerID: 1, WorkerName: "alice"})
	bob := router.New(router.Options{
		WorkerID:   2,
		WorkerName: "bob",
		SharedObjectFactory: func(region buffer.Region, myWorker uint32, scheduler object.Scheduler, facade object.RouterFacade) (*object.SharedObject, error) {
			so, err := threadx.OpenSyncPointObject(region, myWorker, scheduler, facade, nil)
			if err != nil {
				return nil, err
			}
			bobSO = &threadx.SyncPointObject{SharedObject: so}

			// A second, spin-locked view over the same region, dedicated to the
			// render loop: Lock/LockAsync degrade to a busy-spin under
			// WithSpinLock rather than parking, since a render loop must never
			// block waiting for the mutation cycle's lock.
			if buf, ierr := bobSO.Buffer(); ierr == nil {
				if insp, oerr := buffer.Open(buf.Schema(), buf.Region(), buffer.WithSpinLock()); oerr == nil {
					inspector = insp
				}
			}
			close(ready)
			return so, nil
		},
	})

	if err := alice.RegisterWorker("bob", ta); err != nil {
		return err
	}
	if err := bob.RegisterWorker("alice", tb); err != nil {
		return err
	}

	so, err := threadx.NewSyncPointObject(alice.WorkerID(), alice.Scheduler(), alice, nil)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := alice.ShareObjects(ctx, "bob", so.SharedObject); err != nil {
		return err
	}

	select {
	case <-ready:
	case <-ctx.Done():
		return ctx.Err()
	}

	stop := make(chan struct{})
	go mutateForever(so, stop)
	defer close(stop)

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	p := tea.NewProgram(model{inspector: inspector, peerView: bobSO, spin: sp})
	_, err = p.Run()
	return err
}

// mutateForever writes a steadily incrementing counter and a flipping flag
// so the inspector has continuous activity to display.
func mutateForever(so *threadx.SyncPointObject, stop <-chan struct{}) {
	var n int32
	for {
		select {
		case <-stop:
			return
		default:
		}
		n++
		_ = so.SetCounter(n)
		_ = so.SetFlag(n%2 == 0)
		_ = so.SetNumProp1(rand.Float64() * 100)
		time.Sleep(200 * time.Millisecond)
	}
}
