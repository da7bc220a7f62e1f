package serve

import (
	"testing"
)

func TestParseShards(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []uint64
		wantErr bool
	}{
		{"single", "100", []uint64{100}, false},
		{"list", "1, 2,3", []uint64{1, 2, 3}, false},
		{"trailing comma", "7,", []uint64{7}, false},
		{"empty", "", nil, true},
		{"invalid", "a=lstore", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shards, err := parseShards(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseShards(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if len(shards) != len(tt.want) {
				t.Fatalf("got %d shards, want %d", len(shards), len(tt.want))
			}
			for i, id := range tt.want {
				if shards[i].ShardID != id {
					t.Errorf("shard %d = %d, want %d", i, shards[i].ShardID, id)
				}
			}
		})
	}
}
