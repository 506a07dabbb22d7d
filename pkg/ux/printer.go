// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
package ux

import (
	"fmt"
	"io"
	"sync"
)

// Printer writes status lines styled for a personality level.
//
// Thread Safety: Safe for concurrent use; lines are never interleaved.
type Printer struct {
	out   io.Writer
	level PersonalityLevel
	mu    sync.Mutex
}

// NewPrinter creates a Printer writing to out.
func NewPrinter(out io.Writer, level PersonalityLevel) *Printer {
	return &Printer{out: out, level: level}
}

// Level returns the personality level.
func (p *Printer) Level() PersonalityLevel { return p.level }

func (p *Printer) println(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, s)
}

// Title prints a styled title. Machine level prints nothing.
func (p *Printer) Title(text string) {
	if p.level == PersonalityMachine {
		return
	}
	p.println(Styles.Title.Render(text))
}

// Success prints a line marked as successful.
func (p *Printer) Success(text string) {
	p.status("OK", IconSuccess, Styles.Success.Render(text), text)
}

// Warning prints a warning line.
func (p *Printer) Warning(text string) {
	p.status("WARN", IconWarning, Styles.Warning.Render(text), text)
}

// Error prints an error line.
func (p *Printer) Error(text string) {
	p.status("ERROR", IconError, Styles.Error.Render(text), text)
}

func (p *Printer) status(prefix string, icon Icon, styled, plain string) {
	switch p.level {
	case PersonalityMachine:
		p.println(prefix + ": " + plain)
	case PersonalityMinimal:
		p.println(string(icon) + " " + plain)
	default:
		p.println(icon.Render() + " " + styled)
	}
}

// Info prints an informational line.
func (p *Printer) Info(text string) {
	if p.level == PersonalityMachine || p.level == PersonalityMinimal {
		p.println(text)
		return
	}
	p.println(Styles.Muted.Render("│") + " " + text)
}

// Plain prints text unchanged, e.g. a job report.
func (p *Printer) Plain(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprint(p.out, text)
}

// Box prints text in a rounded box. Machine level prints "title: content".
func (p *Printer) Box(title, content string) {
	if p.level != PersonalityFull && p.level != PersonalityStandard {
		p.println(title + ": " + content)
		return
	}
	p.println(Styles.Box.Width(60).Render(Styles.Title.Render(title) + "\n" + content))
}
