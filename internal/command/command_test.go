package command

import (
	"testing"

	"github.com/minikv/minikv/internal/keyspace"
	"github.com/minikv/minikv/internal/wire"
)

func run(dispatch func(args [][]byte) []byte, argv ...string) wire.Value {
	args := make([][]byte, len(argv))
	for i, a := range argv {
		args[i] = []byte(a)
	}
	return mustDecode(dispatch(args))
}

func mustDecode(body []byte) wire.Value {
	v, _, err := wire.DecodeValue(body)
	if err != nil {
		panic(err)
	}
	return v
}

func TestGetSetDel(t *testing.T) {
	store := keyspace.New()
	dispatch := Dispatch(store, nil)

	if v := run(dispatch, "get", "k"); v.Tag != wire.SerNil {
		t.Fatalf("GET on empty = %+v, want SerNil", v)
	}
	if v := run(dispatch, "set", "k", "v"); v.Tag != wire.SerNil {
		t.Fatalf("SET = %+v, want SerNil", v)
	}
	if v := run(dispatch, "get", "k"); v.Tag != wire.SerStr || v.Str != "v" {
		t.Fatalf("GET = %+v, want SerStr(v)", v)
	}
	if v := run(dispatch, "del", "k"); v.Tag != wire.SerInt || v.Int != 1 {
		t.Fatalf("DEL = %+v, want SerInt(1)", v)
	}
	if v := run(dispatch, "del", "k"); v.Tag != wire.SerInt || v.Int != 0 {
		t.Fatalf("second DEL = %+v, want SerInt(0)", v)
	}
}

func TestUnknownCommandAndWrongArity(t *testing.T) {
	store := keyspace.New()
	dispatch := Dispatch(store, nil)

	v := run(dispatch, "frobnicate", "x")
	if v.Tag != wire.SerErr || v.ErrCode != wire.ErrUnknown {
		t.Fatalf("unknown verb = %+v, want ErrUnknown", v)
	}
	v = run(dispatch, "get")
	if v.Tag != wire.SerErr || v.ErrCode != wire.ErrUnknown {
		t.Fatalf("wrong arity = %+v, want ErrUnknown", v)
	}
}

func TestExistsAndType(t *testing.T) {
	store := keyspace.New()
	dispatch := Dispatch(store, nil)

	if v := run(dispatch, "exists", "k"); v.Int != 0 {
		t.Fatalf("EXISTS on empty = %+v", v)
	}
	run(dispatch, "set", "k", "v")
	if v := run(dispatch, "exists", "k"); v.Int != 1 {
		t.Fatalf("EXISTS after SET = %+v", v)
	}
	if v := run(dispatch, "type", "k"); v.Str != "string" {
		t.Fatalf("TYPE = %+v, want string", v)
	}
	if v := run(dispatch, "type", "missing"); v.Str != "none" {
		t.Fatalf("TYPE on missing = %+v, want none", v)
	}
}

func TestZSetRoundTrip(t *testing.T) {
	store := keyspace.New()
	dispatch := Dispatch(store, nil)

	if v := run(dispatch, "zadd", "z", "1", "a"); v.Int != 1 {
		t.Fatalf("ZADD new = %+v, want 1", v)
	}
	if v := run(dispatch, "zscore", "z", "a"); v.Tag != wire.SerDbl || v.Dbl != 1 {
		t.Fatalf("ZSCORE = %+v, want Dbl(1)", v)
	}
	if v := run(dispatch, "zadd", "z", "2", "a"); v.Int != 0 {
		t.Fatalf("ZADD update = %+v, want 0", v)
	}
	if v := run(dispatch, "zscore", "z", "a"); v.Dbl != 2 {
		t.Fatalf("ZSCORE after update = %+v, want Dbl(2)", v)
	}
	if v := run(dispatch, "zcard", "z"); v.Int != 1 {
		t.Fatalf("ZCARD = %+v, want 1 (update must not duplicate)", v)
	}
}

func TestZAddAgainstStringKeyReturnsTypeError(t *testing.T) {
	store := keyspace.New()
	dispatch := Dispatch(store, nil)
	run(dispatch, "set", "k", "v")
	v := run(dispatch, "zadd", "k", "1", "a")
	if v.Tag != wire.SerErr || v.ErrCode != wire.ErrType {
		t.Fatalf("ZADD against string key = %+v, want ErrType", v)
	}
}

func TestZRangeClampsAndHandlesNegativeIndices(t *testing.T) {
	store := keyspace.New()
	dispatch := Dispatch(store, nil)
	run(dispatch, "zadd", "z", "1", "a")
	run(dispatch, "zadd", "z", "2", "b")
	run(dispatch, "zadd", "z", "3", "c")

	v := run(dispatch, "zrange", "z", "0", "-1")
	if v.Tag != wire.SerArr || len(v.Arr) != 6 {
		t.Fatalf("ZRANGE 0 -1 = %+v, want 3 members (6 values)", v)
	}
	if v.Arr[0].Str != "a" || v.Arr[2].Str != "b" || v.Arr[4].Str != "c" {
		t.Fatalf("ZRANGE order = %+v", v)
	}

	v = run(dispatch, "zrange", "z", "-1", "-1")
	if len(v.Arr) != 2 || v.Arr[0].Str != "c" {
		t.Fatalf("ZRANGE -1 -1 = %+v, want just c", v)
	}

	v = run(dispatch, "zrange", "missing", "0", "-1")
	if v.Tag != wire.SerNil {
		t.Fatalf("ZRANGE on missing key = %+v, want SerNil", v)
	}
}

func TestZRemAndZRank(t *testing.T) {
	store := keyspace.New()
	dispatch := Dispatch(store, nil)
	run(dispatch, "zadd", "z", "1", "a")
	run(dispatch, "zadd", "z", "2", "b")

	if v := run(dispatch, "zrank", "z", "b"); v.Int != 1 {
		t.Fatalf("ZRANK b = %+v, want 1", v)
	}
	if v := run(dispatch, "zrem", "z", "a"); v.Int != 1 {
		t.Fatalf("ZREM a = %+v, want 1", v)
	}
	if v := run(dispatch, "zrank", "z", "b"); v.Int != 0 {
		t.Fatalf("ZRANK b after removal = %+v, want 0", v)
	}
	if v := run(dispatch, "zrem", "z", "a"); v.Int != 0 {
		t.Fatalf("second ZREM a = %+v, want 0", v)
	}
}

func TestPing(t *testing.T) {
	store := keyspace.New()
	dispatch := Dispatch(store, nil)
	v := run(dispatch, "ping")
	if v.Tag != wire.SerStr || v.Str != "PONG" {
		t.Fatalf("PING = %+v, want Str(PONG)", v)
	}
}

func TestKeys(t *testing.T) {
	store := keyspace.New()
	dispatch := Dispatch(store, nil)
	run(dispatch, "set", "a", "1")
	run(dispatch, "set", "b", "2")
	v := run(dispatch, "keys")
	if v.Tag != wire.SerArr || len(v.Arr) != 2 {
		t.Fatalf("KEYS = %+v, want 2 entries", v)
	}
}
