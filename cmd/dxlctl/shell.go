package main

import (
	"github.com/abiosoft/ishell"
)

// contextWriter adapts the shell context output to io.Writer.
type contextWriter struct {
	c *ishell.Context
}

func (w contextWriter) Write(p []byte) (int, error) {
	w.c.Print(string(p))
	return len(p), nil
}

func newShell(s *session) *ishell.Shell {
	sh := ishell.New()
	sh.SetPrompt(s.current.Name + " > ")

	for _, cmd := range commands {
		name := cmd.name
		help := cmd.help
		if cmd.usage != "" {
			help = cmd.usage + ": " + help
		}
		sh.AddCmd(&ishell.Cmd{
			Name: name,
			Help: help,
			Func: func(c *ishell.Context) {
				if err := s.exec(name, c.Args, contextWriter{c}); err != nil {
					c.Err(err)
				}
				c.SetPrompt(s.current.Name + " > ")
			},
		})
	}

	return sh
}
