package common

import (
	"encoding/json"
	"errors"
	"github.com/ValentinKolb/memDB/lib/db"
	"github.com/ValentinKolb/memDB/lib/store"
	"testing"
	"time"
)

func TestMessageTypeJSON(t *testing.T) {
	for msgType, name := range msgTypeNames {
		t.Run(name, func(t *testing.T) {
			data, err := json.Marshal(msgType)
			if err != nil {
				t.Fatalf("MarshalJSON() error = %v", err)
			}
			var decoded MessageType
			if err := json.Unmarshal(data, &decoded); err != nil {
				t.Fatalf("UnmarshalJSON() error = %v", err)
			}
			if decoded != msgType {
				t.Errorf("decoded %v, want %v", decoded, msgType)
			}
		})
	}

	var decoded MessageType
	if err := json.Unmarshal([]byte(`"nope"`), &decoded); err == nil {
		t.Errorf("expected error for unknown message type")
	}
}

func TestErrorTransfer(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    store.RetCode
		message string
	}{
		{"store error", store.NotFound("no set found"), store.RetCNotFound, "no set found"},
		{"wrapped store error", errors.Join(store.InvalidArgument("not a map")), store.RetCInvalidArgument, "not a map"},
		{"foreign error", errors.New("boom"), store.RetCInternalError, "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := NewSLenResponse(0, tt.err)
			got := msg.GetError()

			var e *store.Error
			if !errors.As(got, &e) {
				t.Fatalf("GetError() = %T, want *store.Error", got)
			}
			if e.Code != tt.code || e.Msg != tt.message {
				t.Errorf("GetError() = %v/%q, want %v/%q", e.Code, e.Msg, tt.code, tt.message)
			}
		})
	}

	if err := NewSLenResponse(3, nil).GetError(); err != nil {
		t.Errorf("GetError() = %v, want nil", err)
	}
}

func TestTimeTransfer(t *testing.T) {
	ts := time.Now()
	msg := NewSetResponse(ts, nil)
	if !msg.GetTime().Equal(time.Unix(0, ts.UnixNano())) {
		t.Errorf("GetTime() = %v, want %v", msg.GetTime(), ts)
	}
	if !NewSetResponse(time.Time{}, nil).GetTime().IsZero() {
		t.Errorf("expected zero time")
	}
}

func TestRangeRequestBounds(t *testing.T) {
	msg := NewRangeRequest(db.Included([]byte("a")), db.Excluded([]byte("z")))

	lower, upper := msg.Lower.ToDB(), msg.Upper.ToDB()
	if lower.Kind != db.BoundIncluded || string(lower.Key) != "a" {
		t.Errorf("unexpected lower bound %+v", lower)
	}
	if upper.Kind != db.BoundExcluded || string(upper.Key) != "z" {
		t.Errorf("unexpected upper bound %+v", upper)
	}
}

func TestInfoResponse(t *testing.T) {
	info := db.DatabaseInfo{Keys: 3, DbType: db.ImplBTree, Kinds: map[string]int{"set": 3}}
	msg := NewInfoResponse(info, nil)

	var decoded db.DatabaseInfo
	if err := json.Unmarshal(msg.Meta, &decoded); err != nil {
		t.Fatalf("failed to decode info: %v", err)
	}
	if decoded.Keys != 3 || decoded.Kinds["set"] != 3 {
		t.Errorf("unexpected info %+v", decoded)
	}
}
