package blockcache

import (
	"path/filepath"
	"testing"

	"rubin.dev/cix/chainindex"
)

func TestCache_PutGetDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocks.db")
	c, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	var id chainindex.BlockID
	id[0] = 1
	if err := c.Put(id, []byte("raw block bytes")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	raw, ok, err := c.Get(id)
	if err != nil || !ok {
		t.Fatalf("Get: %v ok=%v", err, ok)
	}
	if string(raw) != "raw block bytes" {
		t.Fatalf("unexpected bytes: %q", raw)
	}

	if err := c.Delete(id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, err := c.Get(id); err != nil || ok {
		t.Fatalf("expected miss after delete, got ok=%v err=%v", ok, err)
	}
}
