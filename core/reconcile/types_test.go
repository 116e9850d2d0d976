package reconcile

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"file", KindFile, false},
		{"FILE", KindFile, false},
		{"directory", KindDirectory, false},
		{"dir", KindDirectory, false},
		{"folder", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKind_SQL(t *testing.T) {
	v, err := KindDirectory.Value()
	require.NoError(t, err)
	assert.Equal(t, "directory", v)

	_, err = Kind(0).Value()
	assert.Error(t, err)

	var k Kind
	require.NoError(t, k.Scan([]byte("file")))
	assert.Equal(t, KindFile, k)
	assert.Error(t, k.Scan(42))
}

func TestKind_JSON(t *testing.T) {
	data, err := json.Marshal(RemoteEntry{Key: "a/", Kind: KindDirectory})
	require.NoError(t, err)
	assert.JSONEq(t, `{"key":"a/","kind":"directory","size":0}`, string(data))

	var e RemoteEntry
	require.NoError(t, json.Unmarshal([]byte(`{"key":"a.csv","kind":"file"}`), &e))
	assert.Equal(t, KindFile, e.Kind)
}

func TestSyncResult_Merge(t *testing.T) {
	r := &SyncResult{Datasource: 1, Created: 1, Identical: 2}
	r.Merge(&SyncResult{Created: 2, Updated: 1, Merged: 1, Orphaned: 3, Errors: []EntityError{{Key: "x"}}})
	r.Merge(nil)

	assert.Equal(t, 3, r.Created)
	assert.Equal(t, 1, r.Updated)
	assert.Equal(t, 2, r.Identical)
	assert.Equal(t, 1, r.Merged)
	assert.Equal(t, 3, r.Orphaned)
	assert.Len(t, r.Errors, 1)
	assert.Equal(t, 7, r.Total())
}
