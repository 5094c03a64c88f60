package agents

import (
	"context"
	"sort"

	"quorum/pkg/errors"
	"quorum/pkg/logger"
)

// Handler processes one task kind.
type Handler func(ctx context.Context, task Task) (any, error)

// BaseAgent routes tasks through a kind -> handler lookup table.
// Concrete workers embed it and register their handlers at construction.
type BaseAgent struct {
	name     string
	handlers map[TaskKind]Handler
	log      *logger.Logger
}

// NewBaseAgent creates an agent with the given handler table.
func NewBaseAgent(name string, handlers map[TaskKind]Handler) *BaseAgent {
	table := make(map[TaskKind]Handler, len(handlers))
	for k, h := range handlers {
		table[k] = h
	}
	return &BaseAgent{
		name:     name,
		handlers: table,
		log:      logger.Get().With("agent", name),
	}
}

// Name returns the agent name
func (a *BaseAgent) Name() string {
	return a.name
}

// Log returns the agent logger
func (a *BaseAgent) Log() *logger.Logger {
	return a.log
}

// CanHandle reports whether a handler exists for the task kind.
func (a *BaseAgent) CanHandle(task Task) bool {
	_, ok := a.handlers[task.Kind]
	return ok
}

// Kinds lists the task kinds this agent handles, sorted.
func (a *BaseAgent) Kinds() []TaskKind {
	kinds := make([]TaskKind, 0, len(a.handlers))
	for k := range a.handlers {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Process dispatches the task to its handler.
func (a *BaseAgent) Process(ctx context.Context, task Task) (any, error) {
	h, ok := a.handlers[task.Kind]
	if !ok {
		return nil, errors.Wrapf(errors.ErrUnsupportedTask, "%s: %s", a.name, task.Kind)
	}
	return h(ctx, task)
}

// FuncWorker adapts a single function into a Worker handling the listed kinds.
type FuncWorker struct {
	*BaseAgent
}

// NewFuncWorker creates a worker where every listed kind maps to fn.
func NewFuncWorker(name string, fn Handler, kinds ...TaskKind) *FuncWorker {
	table := make(map[TaskKind]Handler, len(kinds))
	for _, k := range kinds {
		table[k] = fn
	}
	return &FuncWorker{BaseAgent: NewBaseAgent(name, table)}
}
