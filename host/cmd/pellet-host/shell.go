package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/abiosoft/ishell"

	"pellet/host/feeder"
	"pellet/host/sim"
)

const shellKey = "$shell"

// Shell provides an ishell backed interactive shell over a feeder client
type Shell struct {
	Interactive bool
	OutputJSON  bool

	Shell  *ishell.Shell
	Client *feeder.Client
	Sim    *sim.Simulator

	lastErr error
}

// NewShell creates a shell. simulator may be nil.
func NewShell(client *feeder.Client, simulator *sim.Simulator, interactive, outputJSON bool) *Shell {
	s := &Shell{
		Interactive: interactive,
		OutputJSON:  outputJSON,
		Shell:       ishell.New(),
		Client:      client,
		Sim:         simulator,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt("feeder > ")
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	if simulator != nil {
		s.Shell.SetPrompt("[sim] feeder > ")
		for _, cmd := range simCommands {
			s.Shell.AddCmd(cmd)
		}
	}
	return s
}

// shellFrom gets Shell from ishell context
func shellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// Run processes args as one command, or starts the interactive shell
func (s *Shell) Run(args ...string) error {
	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			return err
		}
		return s.lastErr
	}
	if s.Interactive {
		s.Shell.Run()
		return nil
	}
	return errors.New("command expected")
}

// fail reports err on the shell and remembers it for Run
func (s *Shell) fail(c *ishell.Context, err error) {
	s.lastErr = err
	c.Err(err)
}

// print writes v as JSON or as text
func (s *Shell) print(c *ishell.Context, v interface{}) {
	if s.OutputJSON {
		out, err := json.Marshal(v)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.Println(string(out))
		return
	}
	c.Println(v)
}

// wordCmd builds a command that prints one numeric answer
func wordCmd(name string, aliases []string, help string, fn func(*feeder.Client, context.Context) (uint16, error)) *ishell.Cmd {
	return &ishell.Cmd{
		Name:    name,
		Aliases: aliases,
		Help:    help,
		Func: func(c *ishell.Context) {
			s := shellFrom(c)
			v, err := fn(s.Client, context.Background())
			if err != nil {
				s.fail(c, err)
				return
			}
			s.print(c, v)
		},
	}
}

var commands = []*ishell.Cmd{
	{
		Name: "ping",
		Help: "check the feeder connection",
		Func: func(c *ishell.Context) {
			s := shellFrom(c)
			if err := s.Client.CheckConnection(context.Background()); err != nil {
				s.fail(c, err)
				return
			}
			s.print(c, "OK")
		},
	},
	wordCmd("joystick", []string{"js"}, "sample the joystick", (*feeder.Client).SampleJoystick),
	wordCmd("range", []string{"rf"}, "sample the rangefinder", (*feeder.Client).SampleRangefinder),
	wordCmd("retrieval", nil, "wait for the reward to be taken, print ms since detection", (*feeder.Client).RetrievalDelay),
	{
		Name: "dispense",
		Help: "start dispensing a pellet",
		Func: func(c *ishell.Context) {
			s := shellFrom(c)
			if err := s.Client.DispensePellet(context.Background()); err != nil {
				s.fail(c, err)
				return
			}
			s.print(c, "OK")
		},
	},
	{
		Name: "delay",
		Help: "wait for the dispense to resolve, print ms from last attempt to detection",
		Func: func(c *ishell.Context) {
			s := shellFrom(c)
			outcome, err := s.Client.DispenseDelay(context.Background())
			if err != nil {
				s.fail(c, err)
				return
			}
			if s.OutputJSON {
				s.print(c, outcome)
				return
			}
			if outcome.Failed {
				c.Println("FAILED")
				return
			}
			c.Println(outcome.Delay)
		},
	},
	{
		Name: "attempts",
		Help: "print attempts used by the resolved dispense (0 while in progress)",
		Func: func(c *ishell.Context) {
			s := shellFrom(c)
			n, err := s.Client.DispenseAttempts(context.Background())
			if err != nil {
				s.fail(c, err)
				return
			}
			s.print(c, n)
		},
	},
	{
		Name: "trial",
		Help: "[N] [noretrieve] run N dispense trials",
		Func: func(c *ishell.Context) {
			s := shellFrom(c)
			count, waitRetrieval := 1, true
			for _, arg := range c.Args {
				if arg == "noretrieve" {
					waitRetrieval = false
					continue
				}
				n, err := strconv.Atoi(arg)
				if err != nil || n < 1 {
					s.fail(c, fmt.Errorf("invalid trial count %q", arg))
					return
				}
				count = n
			}

			for i := 0; i < count; i++ {
				trial, err := s.Client.RunTrial(context.Background(), waitRetrieval)
				if errors.Is(err, feeder.ErrLinkStalled) {
					// The dispense resolved; only the retrieval is outstanding
					if s.OutputJSON {
						s.print(c, trial)
					} else {
						c.Println(formatTrial(i+1, trial))
					}
					s.fail(c, fmt.Errorf("stopping after trial %d: %w", i+1, err))
					return
				}
				if err != nil {
					s.fail(c, err)
					return
				}
				if s.OutputJSON {
					s.print(c, trial)
					continue
				}
				c.Println(formatTrial(i+1, trial))
			}
		},
	},
}

var simCommands = []*ishell.Cmd{
	{
		Name: "sim.pellet",
		Help: "break the pellet beam",
		Func: func(c *ishell.Context) { shellFrom(c).Sim.TriggerPellet() },
	},
	{
		Name: "sim.retrieve",
		Help: "break the retrieval beam",
		Func: func(c *ishell.Context) { shellFrom(c).Sim.TriggerRetrieval() },
	},
	{
		Name: "sim.joystick",
		Help: "VALUE set the joystick reading",
		Func: func(c *ishell.Context) {
			s := shellFrom(c)
			v, err := parseWord(c.Args)
			if err != nil {
				s.fail(c, err)
				return
			}
			s.Sim.SetJoystick(v)
		},
	},
	{
		Name: "sim.stats",
		Help: "print firmware counters",
		Func: func(c *ishell.Context) {
			s := shellFrom(c)
			stats, err := s.Sim.Stats(context.Background())
			if err != nil {
				s.fail(c, err)
				return
			}
			s.print(c, stats)
		},
	},
}

func parseWord(args []string) (uint16, error) {
	if len(args) != 1 {
		return 0, errors.New("expected one value")
	}
	v, err := strconv.ParseUint(args[0], 10, 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}

func formatTrial(n int, t feeder.Trial) string {
	if t.Failed {
		return fmt.Sprintf("#%d FAILED after %d attempts", n, t.Attempts)
	}
	line := fmt.Sprintf("#%d dispensed in %d ms after %d attempt(s)", n, t.DispenseDelay, t.Attempts)
	if t.Retrieved {
		line += fmt.Sprintf(", retrieved after %d ms", t.RetrievalDelay)
	}
	return line
}
