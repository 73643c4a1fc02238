package registry_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/poolkeeper/internal/domain"
	"github.com/alanyoungcy/poolkeeper/internal/ledger"
	"github.com/alanyoungcy/poolkeeper/internal/registry"
)

const registryAddr = "0x1111111111111111111111111111111111111111"

type pointerReader struct {
	pointer string
	calls   []ledger.Call
}

func (p *pointerReader) ReadBatch(_ context.Context, calls []ledger.Call) (*ledger.Results, error) {
	p.calls = append(p.calls, calls...)
	res := ledger.NewResults()
	for _, c := range calls {
		for _, r := range c.Returns {
			res.Set(r.Key, ledger.StringValue(p.pointer))
		}
	}
	return res, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func addrs(root string) map[string]string {
	return map[string]string{
		domain.ContractRoot:          root,
		domain.ContractReserve:       "0xa1",
		domain.ContractAssessor:      "0xa2",
		domain.ContractCoordinator:   "0xa3",
		domain.ContractSeniorTranche: "0xa4",
		domain.ContractJuniorTranche: "0xa5",
	}
}

const document = `{"pools":[
 {"addresses":{"ROOT_CONTRACT":"0xAA","RESERVE":"0x1","ASSESSOR":"0x2","COORDINATOR":"0x3","SENIOR_TRANCHE":"0x4","JUNIOR_TRANCHE":"0x5"},
  "metadata":{"name":"Alpha","network":"mainnet","version":3}},
 {"addresses":{"ROOT_CONTRACT":"0xBB"},"metadata":{"name":"Broken","network":"mainnet"}},
 {"addresses":{"ROOT_CONTRACT":"0xCC","RESERVE":"0x1","ASSESSOR":"0x2","COORDINATOR":"0x3","SENIOR_TRANCHE":"0x4","JUNIOR_TRANCHE":"0x5"},
  "metadata":{"name":"Old","network":"mainnet","isArchived":true}}
]}`

func TestRegistryPools(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(document))
	}))
	defer srv.Close()

	reader := &pointerReader{pointer: "QmHash"}
	reg := registry.New(reader, registry.Config{
		Address:     registryAddr,
		Network:     "mainnet",
		IPFSGateway: srv.URL + "/",
		Timeout:     time.Second,
	}, testLogger())

	pools, err := reg.Pools(context.Background())
	require.NoError(t, err)
	require.Len(t, pools, 1)
	assert.Equal(t, "0xaa", pools[0].ID)
	assert.Equal(t, "Alpha", pools[0].DisplayName())
	assert.Equal(t, "/ipfs/QmHash", gotPath)

	require.Len(t, reader.calls, 1)
	assert.Equal(t, "find(address)", reader.calls[0].Signature)
}

func TestRegistryEmptyPointer(t *testing.T) {
	reg := registry.New(&pointerReader{}, registry.Config{Address: registryAddr}, testLogger())
	_, err := reg.Pools(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentURL(t *testing.T) {
	gw := "https://gateway.example/"
	assert.Equal(t, "https://gateway.example/ipfs/Qm1", registry.DocumentURL(gw, "Qm1"))
	assert.Equal(t, "https://gateway.example/ipfs/Qm1", registry.DocumentURL(gw, "ipfs://Qm1"))
	assert.Equal(t, "https://gateway.example/ipfs/Qm1", registry.DocumentURL(gw, "/ipfs/Qm1"))
	assert.Equal(t, "https://x.example/pools.json", registry.DocumentURL(gw, "https://x.example/pools.json"))
}

func TestFilter(t *testing.T) {
	pools := []domain.Pool{
		{ID: "0xP1", Addresses: addrs("0xp1"), Metadata: domain.PoolMetadata{Network: "kovan"}},
		{ID: "0xp2", Addresses: addrs("0xp2"), Metadata: domain.PoolMetadata{Network: "mainnet"}},
		{ID: "0xp3", Addresses: addrs("0xp3"), Metadata: domain.PoolMetadata{IsUpcoming: true}},
		{ID: "0xp2", Addresses: addrs("0xp2")},
		{Addresses: addrs("0xP4")},
	}

	got := registry.Filter(pools, "mainnet", testLogger())
	ids := make([]string, 0, len(got))
	for _, p := range got {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"0xp2", "0xp4"}, ids)
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pools.yaml")
	content := `pools:
  - id: "0xabc"
    addresses:
      ROOT_CONTRACT: "0xabc"
      RESERVE: "0x1"
      ASSESSOR: "0x2"
      COORDINATOR: "0x3"
      SENIOR_TRANCHE: "0x4"
      JUNIOR_TRANCHE: "0x5"
      CLERK: "0x6"
    metadata:
      name: Test Pool
      network: goerli
      thresholds:
        reserve_alert: "0.9"
  - id: "0xdef"
    addresses:
      ROOT_CONTRACT: "0xdef"
    metadata:
      name: Incomplete
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	pools, err := registry.NewFileSource(path, "goerli", testLogger()).Pools(context.Background())
	require.NoError(t, err)
	require.Len(t, pools, 1)
	assert.True(t, pools[0].HasCreditLine())
	assert.Equal(t, "0.9", pools[0].Metadata.Thresholds.ReserveAlert)
}

func TestFileSourceMissingFile(t *testing.T) {
	_, err := registry.NewFileSource(filepath.Join(t.TempDir(), "nope.yaml"), "", testLogger()).Pools(context.Background())
	assert.Error(t, err)
}
