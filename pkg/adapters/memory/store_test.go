package memory_test

import (
	"testing"

	"github.com/gnueaj/SAE-vis-sub000/pkg/adapters/memory"
	"github.com/gnueaj/SAE-vis-sub000/pkg/ports"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunTreeStoreContract(t, store)
}
