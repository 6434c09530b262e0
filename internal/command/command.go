// Package command dispatches a decoded argument list to the handler for its
// verb and arity, running it against a keyspace.Store and producing a reply
// body.
package command

import (
	"strconv"
	"strings"

	"github.com/minikv/minikv/internal/audit"
	"github.com/minikv/minikv/internal/keyspace"
	"github.com/minikv/minikv/internal/wire"
	"github.com/minikv/minikv/internal/zset"
)

// mutatingVerbs are the commands audited by Dispatch's optional audit
// logger, keyed by verb.
var mutatingVerbs = map[string]bool{
	"set":  true,
	"del":  true,
	"zadd": true,
	"zrem": true,
}

// handlerFunc runs one command's arguments (args[0] is the verb) against
// store and writes its reply into w.
type handlerFunc func(store *keyspace.Store, args [][]byte, w *wire.ReplyWriter)

type route struct {
	argc int // exact argument count required, including the verb
	fn   handlerFunc
}

var routes = map[string]route{
	"ping":   {1, doPing},
	"keys":   {1, doKeys},
	"get":    {2, doGet},
	"del":    {2, doDel},
	"exists": {2, doExists},
	"type":   {2, doType},
	"set":    {3, doSet},
	"zcard":  {2, doZCard},
	"zscore": {3, doZScore},
	"zrank":  {3, doZRank},
	"zrem":   {3, doZRem},
	"zadd":   {4, doZAdd},
	"zrange": {4, doZRange},
}

// Dispatch implements conn.Handler: it looks up args[0] (case-insensitive,
// per cmd_is in the original) and runs the matching handler, or replies
// ERR_UNKNOWN if no route matches verb and argument count. auditLog may be
// nil, in which case mutating commands simply aren't recorded.
func Dispatch(store *keyspace.Store, auditLog *audit.Logger) func(args [][]byte) []byte {
	return func(args [][]byte) []byte {
		w := wire.NewReplyWriter()
		if len(args) == 0 {
			w.Err(wire.ErrUnknown, "empty command")
			return w.Bytes()
		}
		verb := strings.ToLower(string(args[0]))
		r, ok := routes[verb]
		if !ok || r.argc != len(args) {
			w.Err(wire.ErrUnknown, "unknown command")
			return w.Bytes()
		}
		r.fn(store, args, w)
		if auditLog != nil && mutatingVerbs[verb] {
			auditLog.Log(verb, string(args[1]))
		}
		return w.Bytes()
	}
}

func doPing(store *keyspace.Store, args [][]byte, w *wire.ReplyWriter) {
	w.Str("PONG")
}

func doKeys(store *keyspace.Store, args [][]byte, w *wire.ReplyWriter) {
	keys := store.Keys()
	w.ArrHeader(uint32(len(keys)))
	for _, k := range keys {
		w.Str(k)
	}
}

func doGet(store *keyspace.Store, args [][]byte, w *wire.ReplyWriter) {
	v, ok := store.Get(string(args[1]))
	if !ok {
		w.Nil()
		return
	}
	s, ok := v.(keyspace.StringValue)
	if !ok {
		w.Err(wire.ErrType, "value is not a string")
		return
	}
	w.Str(string(s))
}

func doSet(store *keyspace.Store, args [][]byte, w *wire.ReplyWriter) {
	store.Set(string(args[1]), keyspace.StringValue(args[2]))
	w.Nil()
}

func doDel(store *keyspace.Store, args [][]byte, w *wire.ReplyWriter) {
	if store.Del(string(args[1])) {
		w.Int(1)
	} else {
		w.Int(0)
	}
}

func doExists(store *keyspace.Store, args [][]byte, w *wire.ReplyWriter) {
	if store.Exists(string(args[1])) {
		w.Int(1)
	} else {
		w.Int(0)
	}
}

func doType(store *keyspace.Store, args [][]byte, w *wire.ReplyWriter) {
	v, ok := store.Get(string(args[1]))
	if !ok {
		w.Str("none")
		return
	}
	w.Str(v.Kind().String())
}

func doZAdd(store *keyspace.Store, args [][]byte, w *wire.ReplyWriter) {
	score, err := strconv.ParseFloat(string(args[2]), 64)
	if err != nil {
		w.Err(wire.ErrType, "score is not a number")
		return
	}
	z, ok := store.GetOrCreateZSet(string(args[1]))
	if !ok {
		w.Err(wire.ErrType, "value is not a zset")
		return
	}
	if z.Add(string(args[3]), score) {
		w.Int(1)
	} else {
		w.Int(0)
	}
}

func doZScore(store *keyspace.Store, args [][]byte, w *wire.ReplyWriter) {
	z, ok := zsetOf(store, args[1], w)
	if !ok {
		return
	}
	m, ok := z.Lookup(string(args[2]))
	if !ok {
		w.Nil()
		return
	}
	w.Dbl(m.Score)
}

func doZRank(store *keyspace.Store, args [][]byte, w *wire.ReplyWriter) {
	z, ok := zsetOf(store, args[1], w)
	if !ok {
		return
	}
	rank, ok := z.Rank(string(args[2]))
	if !ok {
		w.Nil()
		return
	}
	w.Int(int64(rank))
}

func doZRem(store *keyspace.Store, args [][]byte, w *wire.ReplyWriter) {
	if !store.Exists(string(args[1])) {
		w.Int(0)
		return
	}
	z, ok := zsetOf(store, args[1], w)
	if !ok {
		return
	}
	if _, ok := z.Pop(string(args[2])); ok {
		w.Int(1)
	} else {
		w.Int(0)
	}
}

func doZCard(store *keyspace.Store, args [][]byte, w *wire.ReplyWriter) {
	v, ok := store.Get(string(args[1]))
	if !ok {
		w.Int(0)
		return
	}
	z, ok := v.(keyspace.ZSetValue)
	if !ok {
		w.Err(wire.ErrType, "value is not a zset")
		return
	}
	w.Int(int64(z.Len()))
}

func doZRange(store *keyspace.Store, args [][]byte, w *wire.ReplyWriter) {
	z, ok := zsetOf(store, args[1], w)
	if !ok {
		return
	}
	start, err1 := strconv.Atoi(string(args[2]))
	stop, err2 := strconv.Atoi(string(args[3]))
	if err1 != nil || err2 != nil {
		w.Err(wire.ErrType, "index is not an integer")
		return
	}
	n := z.Len()
	if n == 0 {
		w.ArrHeader(0)
		return
	}
	start = resolveIndex(start, n)
	stop = resolveIndex(stop, n)

	var members []zset.Member
	z.Range(start, stop, func(m zset.Member) bool {
		members = append(members, m)
		return true
	})
	w.ArrHeader(uint32(2 * len(members)))
	for _, m := range members {
		w.Str(m.Name)
		w.Dbl(m.Score)
	}
}

// resolveIndex applies Python-style negative indexing (-1 is the last
// element) and clamps into [0, n), matching ZRANGE's index semantics.
func resolveIndex(i, n int) int {
	if i < 0 {
		i = n + i
	}
	if i < 0 {
		i = 0
	}
	if i >= n {
		i = n - 1
	}
	return i
}

func zsetOf(store *keyspace.Store, key []byte, w *wire.ReplyWriter) (*zset.Set, bool) {
	v, ok := store.Get(string(key))
	if !ok {
		w.Nil()
		return nil, false
	}
	z, ok := v.(keyspace.ZSetValue)
	if !ok {
		w.Err(wire.ErrType, "value is not a zset")
		return nil, false
	}
	return z.Set, true
}
