package core

import (
	"errors"
	"sort"
	"sync"
)

// Reply is what a command handler returns on each attempt to complete it.
// A pending reply keeps the command in flight until the next loop iteration.
type Reply struct {
	status  replyStatus
	payload uint32
}

type replyStatus uint8

const (
	replyPending replyStatus = iota
	replyDone
	replyValue
)

// Pending keeps the command in flight
func Pending() Reply { return Reply{status: replyPending} }

// Done completes the command without a response payload
func Done() Reply { return Reply{status: replyDone} }

// Respond completes the command with a response word
func Respond(v uint32) Reply { return Reply{status: replyValue, payload: v} }

// IsPending reports whether the command is still waiting on its condition
func (r Reply) IsPending() bool { return r.status == replyPending }

// Payload returns the response word and whether there is one
func (r Reply) Payload() (uint32, bool) { return r.payload, r.status == replyValue }

// CommandHandler tries to complete a command at time now
type CommandHandler func(now uint32) Reply

// Command represents one entry of the single-byte command set
type Command struct {
	ID      byte
	Name    string
	Handler CommandHandler
}

// CommandRegistry holds all registered commands
type CommandRegistry struct {
	mu       sync.RWMutex
	commands map[byte]*Command
	nameToID map[string]byte
}

// ErrDuplicateCommand is returned when a command byte is registered twice
var ErrDuplicateCommand = errors.New("command byte already registered")

// NewCommandRegistry creates a new command registry
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		commands: make(map[byte]*Command),
		nameToID: make(map[string]byte),
	}
}

// Register adds a command to the registry
func (r *CommandRegistry) Register(id byte, name string, handler CommandHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.commands[id]; exists {
		return ErrDuplicateCommand
	}

	r.commands[id] = &Command{
		ID:      id,
		Name:    name,
		Handler: handler,
	}
	r.nameToID[name] = id
	return nil
}

// GetCommand retrieves a command by its byte value
func (r *CommandRegistry) GetCommand(id byte) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[id]
	return cmd, ok
}

// GetCommandByName retrieves a command by name
func (r *CommandRegistry) GetCommandByName(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.nameToID[name]
	if !ok {
		return nil, false
	}
	return r.commands[id], true
}

// Count returns the number of registered commands
func (r *CommandRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// IDs returns the registered command bytes in ascending order
func (r *CommandRegistry) IDs() []byte {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]byte, 0, len(r.commands))
	for id := range r.commands {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
