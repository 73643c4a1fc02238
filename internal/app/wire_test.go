package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/poolkeeper/internal/config"
	"github.com/alanyoungcy/poolkeeper/internal/domain"
	"github.com/alanyoungcy/poolkeeper/internal/keeper"
	"github.com/alanyoungcy/poolkeeper/internal/ledger"
	"github.com/alanyoungcy/poolkeeper/internal/notify"
	"github.com/alanyoungcy/poolkeeper/internal/registry"
)

type recordingNotifier struct {
	msgs []notify.Message
	err  error
}

func (r *recordingNotifier) Notify(_ context.Context, m notify.Message) error {
	r.msgs = append(r.msgs, m)
	return r.err
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestSendersFollowConfig(t *testing.T) {
	cfg := config.Defaults()
	assert.Empty(t, senders(&cfg))

	cfg.Notify.SlackWebhookURL = "https://hooks.slack.test/x"
	cfg.Notify.TelegramToken = "token"
	assert.Len(t, senders(&cfg), 1, "telegram needs a chat id too")

	cfg.Notify.TelegramChatID = "42"
	cfg.Notify.DiscordWebhookURL = "https://discord.test/x"
	names := make([]string, 0, 3)
	for _, s := range senders(&cfg) {
		names = append(names, s.Name())
	}
	assert.Len(t, names, 3)
}

func TestPoolSourcePrefersFile(t *testing.T) {
	cfg := config.Defaults()
	cfg.Registry.PoolsFile = "pools.yaml"
	_, ok := poolSource(&cfg, nil, quietLogger()).(*registry.FileSource)
	assert.True(t, ok)

	cfg.Registry.PoolsFile = ""
	_, ok = poolSource(&cfg, nil, quietLogger()).(*registry.Registry)
	assert.True(t, ok)
}

func TestSettleNotifierNamesPool(t *testing.T) {
	pools := keeper.NewPoolSet()
	pools.Replace([]domain.Pool{{
		ID:       "0xpool",
		Metadata: domain.PoolMetadata{Name: "Harbor Trade"},
	}})
	n := &recordingNotifier{}
	hook := settleNotifier(pools, n, quietLogger())

	rec := domain.TxRecord{PoolID: "0xpool", Action: domain.ActionClose, Nonce: 7}
	hook(context.Background(), rec, ledger.Receipt{Hash: "0xabc", Succeeded: true})

	require.Len(t, n.msgs, 1)
	assert.Equal(t, notify.EventTxSettled, n.msgs[0].Event)
	assert.Contains(t, n.msgs[0].Title, "Harbor Trade")
	assert.Contains(t, n.msgs[0].Title, "confirmed")
}

func TestSettleNotifierUnknownPoolAndFailure(t *testing.T) {
	n := &recordingNotifier{err: errors.New("webhook down")}
	hook := settleNotifier(keeper.NewPoolSet(), n, quietLogger())

	rec := domain.TxRecord{PoolID: "0xgone", Action: domain.ActionExecute}
	hook(context.Background(), rec, ledger.Receipt{Hash: "0xdef", Succeeded: false})

	require.Len(t, n.msgs, 1)
	assert.Contains(t, n.msgs[0].Title, "0xgone")
	assert.Contains(t, n.msgs[0].Title, "reverted")
}
