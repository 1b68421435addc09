package main

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/lixenwraith/aetheria/audio"
	"github.com/lixenwraith/aetheria/patch"
	"github.com/lixenwraith/aetheria/status"
)

const (
	paramColumnWidth = 44
	spectrumTop      = 2
	footerRows       = 3
	// spectrumSpan is the fraction of analyser bins shown, the upper bins carry little energy
	spectrumSpan = 0.4
	messageTTL   = 3 * time.Second
	defaultSave  = "aetheria-patch.toml"
)

var (
	styleDefault  = tcell.StyleDefault
	styleTitle    = tcell.StyleDefault.Foreground(tcell.ColorGold).Bold(true)
	styleGroup    = tcell.StyleDefault.Foreground(tcell.ColorDarkOrange)
	styleSelected = tcell.StyleDefault.Background(tcell.ColorDarkOrange).Foreground(tcell.ColorBlack)
	styleBar      = tcell.StyleDefault.Foreground(tcell.ColorOrange)
	styleDim      = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleWarn     = tcell.StyleDefault.Foreground(tcell.ColorRed)
)

// ui is the terminal control surface around one engine
type ui struct {
	screen tcell.Screen
	engine *audio.Engine
	reg    *status.Registry
	log    *slog.Logger
	rand   audio.Random

	keys      *keyboard
	fields    []patch.Field
	selected  int
	patchName string
	savePath  string

	message   string
	messageAt time.Time
	spectrum  []byte
}

func newUI(screen tcell.Screen, engine *audio.Engine, reg *status.Registry, log *slog.Logger, r audio.Random) *ui {
	return &ui{
		screen:    screen,
		engine:    engine,
		reg:       reg,
		log:       log,
		rand:      r,
		keys:      newKeyboard(),
		fields:    patch.Fields(),
		patchName: "default",
		savePath:  defaultSave,
	}
}

// handleKey processes one key event, it returns false when the user quits
func (u *ui) handleKey(ev *tcell.EventKey, now time.Time) bool {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return false
	case tcell.KeyUp:
		u.selected = (u.selected - 1 + len(u.fields)) % len(u.fields)
	case tcell.KeyDown:
		u.selected = (u.selected + 1) % len(u.fields)
	case tcell.KeyLeft:
		u.nudge(-1)
	case tcell.KeyRight:
		u.nudge(1)
	case tcell.KeyPgDn:
		u.nudge(-4)
	case tcell.KeyPgUp:
		u.nudge(4)
	case tcell.KeyTab:
		u.releaseNotes(u.keys.toggleSustain())
		if u.keys.sustain {
			u.notify("sustain on")
		} else {
			u.notify("sustain off")
		}
	case tcell.KeyF2, tcell.KeyCtrlR:
		u.mutate()
	case tcell.KeyF3, tcell.KeyCtrlS:
		u.save()
	case tcell.KeyCtrlD:
		u.apply(patch.Default())
		u.patchName = "default"
		u.notify("default patch")
	case tcell.KeyRune:
		if ev.Rune() == ' ' {
			u.releaseNotes(u.keys.releaseAll())
			return true
		}
		if note, attack, ok := u.keys.press(ev.Rune(), now); ok && attack {
			u.engine.TriggerAttack(note)
		}
	}
	return true
}

// tick releases notes whose key stopped repeating
func (u *ui) tick(now time.Time) {
	u.releaseNotes(u.keys.expire(now))
	if u.message != "" && now.Sub(u.messageAt) > messageTTL {
		u.message = ""
	}
}

func (u *ui) releaseNotes(notes []string) {
	for _, note := range notes {
		u.engine.TriggerRelease(note)
	}
}

// nudge moves the selected field by steps of its Step size
func (u *ui) nudge(steps int) {
	f := u.fields[u.selected]
	p := u.engine.Params()
	f.Set(&p, f.Get(p)+float64(steps)*f.Step)
	u.apply(p)
}

func (u *ui) apply(p patch.Params) {
	u.engine.UpdateParams(p)
}

func (u *ui) mutate() {
	u.apply(patch.Mutate(u.rand))
	u.patchName = "mutated"
	u.notify("mutated")
	u.log.Debug("patch mutated")
}

func (u *ui) save() {
	if err := patch.Save(u.savePath, u.patchName, u.engine.Params()); err != nil {
		u.log.Warn("patch save failed", "path", u.savePath, "error", err)
		u.notify("save failed: " + err.Error())
		return
	}
	u.notify("saved " + u.savePath)
}

func (u *ui) notify(msg string) {
	u.message = msg
	u.messageAt = time.Now()
}

// draw renders the full frame
func (u *ui) draw() {
	u.screen.Clear()
	width, height := u.screen.Size()

	title := "AETHERIA  patch: " + u.patchName
	if u.keys.sustain {
		title += "  [SUSTAIN]"
	}
	u.drawText(0, 0, styleTitle, title)
	if u.engine.Silent() {
		u.drawText(len(title)+2, 0, styleWarn, "[SILENT]")
	}

	u.drawParams(height - footerRows)
	if width > paramColumnWidth+4 {
		u.drawSpectrum(paramColumnWidth+2, spectrumTop, width-paramColumnWidth-2, height-footerRows-spectrumTop)
	}
	u.drawFooter(width, height)
	u.screen.Show()
}

func (u *ui) drawParams(bottom int) {
	p := u.engine.Params()
	group := ""
	y := spectrumTop
	for i, f := range u.fields {
		if y >= bottom {
			return
		}
		label := ""
		if f.Group != group {
			group = f.Group
			label = group
		}
		u.drawText(0, y, styleGroup, fmt.Sprintf("%-9s", label))

		style := styleDefault
		if i == u.selected {
			style = styleSelected
		}
		v := f.Get(p)
		u.drawText(10, y, style, fmt.Sprintf("%-7s %7.2f", f.Label, v))
		u.drawText(27, y, styleBar, meter(v, f.Min, f.Max, paramColumnWidth-28))
		y++
	}
}

// meter renders a horizontal level bar of width cells
func meter(v, lo, hi float64, width int) string {
	if width <= 0 || hi <= lo {
		return ""
	}
	filled := int((v - lo) / (hi - lo) * float64(width))
	filled = max(0, min(filled, width))
	return strings.Repeat("█", filled) + strings.Repeat("·", width-filled)
}

func (u *ui) drawSpectrum(x0, y0, width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	u.spectrum = u.engine.Spectrum(u.spectrum)
	levels := spectrumColumns(u.spectrum, width)
	for col, level := range levels {
		bar := int(float64(level) / 255 * float64(height))
		for row := range bar {
			u.screen.SetContent(x0+col, y0+height-1-row, '▮', nil, styleBar)
		}
	}
}

// spectrumColumns folds the lower analyser bins into width columns, each column takes its loudest bin
func spectrumColumns(bins []byte, width int) []byte {
	if width <= 0 || len(bins) == 0 {
		return nil
	}
	span := max(1, int(float64(len(bins))*spectrumSpan))
	out := make([]byte, width)
	for col := range out {
		lo := col * span / width
		hi := max(lo+1, (col+1)*span/width)
		out[col] = slices.Max(bins[lo:min(hi, len(bins))])
	}
	return out
}

func (u *ui) drawFooter(width, height int) {
	held := slices.Sorted(maps.Keys(u.keys.held))
	u.drawText(0, height-3, styleDefault, "held: "+strings.Join(held, " "))
	if u.message != "" {
		u.drawText(max(0, width-len(u.message)-1), height-3, styleTitle, u.message)
	}
	u.drawText(0, height-2, styleDim, "↑↓ select  ←→ adjust  PgUp/PgDn coarse  Tab sustain  Space release  F2 mutate  F3 save  ^D default  Esc quit")
	if u.reg != nil {
		u.drawText(0, height-1, styleDim, strings.Join(u.reg.Lines(), "  "))
	}
}

func (u *ui) drawText(x, y int, style tcell.Style, text string) {
	width, _ := u.screen.Size()
	for _, r := range text {
		if x >= width {
			return
		}
		u.screen.SetContent(x, y, r, nil, style)
		x++
	}
}
