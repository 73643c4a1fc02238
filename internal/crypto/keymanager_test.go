package crypto_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/poolkeeper/internal/crypto"
)

const testKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestEncryptDecryptKey(t *testing.T) {
	blob, err := crypto.EncryptKey("0x"+testKey, "hunter2")
	require.NoError(t, err)

	key, err := crypto.DecryptKey(blob, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, testKey, common.Bytes2Hex(ethcrypto.FromECDSA(key)))

	_, err = crypto.DecryptKey(blob, "wrong")
	assert.Error(t, err)
}

func TestEncryptKeyRejectsBadInput(t *testing.T) {
	_, err := crypto.EncryptKey(testKey, "")
	assert.Error(t, err)

	_, err = crypto.EncryptKey("abcd", "pw")
	assert.Error(t, err)

	_, err = crypto.EncryptKey("zz", "pw")
	assert.Error(t, err)
}

func TestLoadKeyPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "key.json")
	blob, err := crypto.EncryptKey(testKey, "pw")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	fromFile, err := crypto.LoadKey(crypto.KeyConfig{EncryptedKeyPath: path, KeyPassword: "pw"})
	require.NoError(t, err)

	raw, err := crypto.LoadKey(crypto.KeyConfig{RawPrivateKey: testKey, EncryptedKeyPath: "/does/not/exist"})
	require.NoError(t, err)
	assert.Equal(t, ethcrypto.FromECDSA(raw), ethcrypto.FromECDSA(fromFile))

	_, err = crypto.LoadKey(crypto.KeyConfig{})
	assert.Error(t, err)
}

func TestSignerSignsForChain(t *testing.T) {
	key, err := crypto.LoadKey(crypto.KeyConfig{RawPrivateKey: testKey})
	require.NoError(t, err)
	s := crypto.NewSigner(key, 137)

	to := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	tx := types.NewTx(&types.LegacyTx{Nonce: 7, To: &to, Gas: 21000, GasPrice: common.Big1})
	signed, err := s.SignTx(tx)
	require.NoError(t, err)

	from, err := types.Sender(types.LatestSignerForChainID(s.ChainID()), signed)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), from)
	assert.Equal(t, int64(137), signed.ChainId().Int64())
}
