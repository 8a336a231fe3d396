package rig

import (
	"slices"
	"sync"
	"time"
)

// PushResult はキュー投入の結果です。
type PushResult struct {
	// Dropped は空きを作るために捨てられたコマンドです。投入したコマンド自身の場合もあります。
	Dropped  *Command
	Overflow bool
}

// CommandQueue は送信待ちコマンドの有界FIFOです。
// 満杯時は最も古いSecondaryを捨て、Primaryとsystemは容量を超えても保持します。
type CommandQueue struct {
	mu       sync.Mutex
	items    []Command
	capacity int
}

func NewCommandQueue(capacity int) *CommandQueue {
	return &CommandQueue{capacity: max(capacity, 1)}
}

func (q *CommandQueue) Push(c Command) PushResult {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) < q.capacity {
		q.items = append(q.items, c)
		return PushResult{}
	}

	if i := slices.IndexFunc(q.items, Command.Droppable); i >= 0 {
		dropped := q.items[i]
		q.items = slices.Delete(q.items, i, i+1)
		q.items = append(q.items, c)
		return PushResult{Dropped: &dropped}
	}
	if c.Droppable() {
		return PushResult{Dropped: &c}
	}
	q.items = append(q.items, c)
	return PushResult{Overflow: true}
}

// PopN は先頭から最大n件を取り出します。
func (q *CommandQueue) PopN(n int) []Command {
	q.mu.Lock()
	defer q.mu.Unlock()

	n = min(n, len(q.items))
	if n <= 0 {
		return nil
	}
	out := slices.Clone(q.items[:n])
	q.items = slices.Delete(q.items, 0, n)
	return out
}

// PushFront は送れなかったコマンドを順序を保ったまま先頭に戻します。
func (q *CommandQueue) PushFront(cmds []Command) {
	if len(cmds) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = slices.Insert(q.items, 0, cmds...)
}

// DropStale はbeforeより前に作られたコマンドを取り除いて返します。
func (q *CommandQueue) DropStale(before time.Time) []Command {
	q.mu.Lock()
	defer q.mu.Unlock()

	var stale []Command
	q.items = slices.DeleteFunc(q.items, func(c Command) bool {
		if c.Created.Before(before) {
			stale = append(stale, c)
			return true
		}
		return false
	})
	return stale
}

func (q *CommandQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
