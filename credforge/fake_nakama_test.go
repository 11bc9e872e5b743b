package credforge

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// testNakama is an in-memory Nakama module backing the engine tests. It
// implements versioned storage with the same conditional write semantics as
// the real server, wallets that reject negative balances, a wallet ledger
// and captured notifications. Everything else panics via the embedded nil
// interface.
type testNakama struct {
	runtime.NakamaModule

	mu             sync.Mutex
	objects        map[string]*storedObject
	versionCounter int
	wallets        map[string]map[string]int64
	ledger         map[string][]runtime.WalletLedgerItem
	ledgerCounter  int
	notifications  []*sentNotification
	configDir      string
}

type storedObject struct {
	value   string
	version string
}

type sentNotification struct {
	userID  string
	subject string
	content map[string]interface{}
	code    int
}

func newTestNakama() *testNakama {
	return &testNakama{
		objects: make(map[string]*storedObject),
		wallets: make(map[string]map[string]int64),
		ledger:  make(map[string][]runtime.WalletLedgerItem),
	}
}

func objectKey(userID, collection, key string) string {
	return userID + "|" + collection + "|" + key
}

func (f *testNakama) StorageRead(ctx context.Context, reads []*runtime.StorageRead) ([]*api.StorageObject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	objects := make([]*api.StorageObject, 0, len(reads))
	for _, read := range reads {
		stored, ok := f.objects[objectKey(read.UserID, read.Collection, read.Key)]
		if !ok {
			continue
		}
		objects = append(objects, &api.StorageObject{
			Collection: read.Collection,
			Key:        read.Key,
			UserId:     read.UserID,
			Value:      stored.value,
			Version:    stored.version,
		})
	}
	return objects, nil
}

// checkWriteLocked enforces the conditional write contract: "" writes
// unconditionally, "*" requires the object not to exist, anything else must
// match the stored version.
func (f *testNakama) checkWriteLocked(write *runtime.StorageWrite) error {
	stored, exists := f.objects[objectKey(write.UserID, write.Collection, write.Key)]
	switch write.Version {
	case "":
		return nil
	case "*":
		if exists {
			return fmt.Errorf("storage write rejected: version check failed")
		}
		return nil
	default:
		if !exists || stored.version != write.Version {
			return fmt.Errorf("storage write rejected: version check failed")
		}
		return nil
	}
}

func (f *testNakama) applyWriteLocked(write *runtime.StorageWrite) *api.StorageObjectAck {
	f.versionCounter++
	version := fmt.Sprintf("v%d", f.versionCounter)
	f.objects[objectKey(write.UserID, write.Collection, write.Key)] = &storedObject{
		value:   write.Value,
		version: version,
	}
	return &api.StorageObjectAck{
		Collection: write.Collection,
		Key:        write.Key,
		UserId:     write.UserID,
		Version:    version,
	}
}

func (f *testNakama) StorageWrite(ctx context.Context, writes []*runtime.StorageWrite) ([]*api.StorageObjectAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, write := range writes {
		if err := f.checkWriteLocked(write); err != nil {
			return nil, err
		}
	}
	acks := make([]*api.StorageObjectAck, 0, len(writes))
	for _, write := range writes {
		acks = append(acks, f.applyWriteLocked(write))
	}
	return acks, nil
}

// checkWalletLocked rejects changesets that would drive any balance negative.
func (f *testNakama) checkWalletLocked(userID string, changeset map[string]int64) error {
	wallet := f.wallets[userID]
	for currency, delta := range changeset {
		if wallet[currency]+delta < 0 {
			return fmt.Errorf("wallet update rejected: insufficient funds for %s", currency)
		}
	}
	return nil
}

func (f *testNakama) applyWalletLocked(userID string, changeset map[string]int64, metadata map[string]interface{}, updateLedger bool) {
	wallet := f.wallets[userID]
	if wallet == nil {
		wallet = make(map[string]int64)
		f.wallets[userID] = wallet
	}
	for currency, delta := range changeset {
		wallet[currency] += delta
	}
	if updateLedger {
		f.ledgerCounter++
		copied := make(map[string]int64, len(changeset))
		for currency, delta := range changeset {
			copied[currency] = delta
		}
		item := &testLedgerItem{
			id:         fmt.Sprintf("tx%d", f.ledgerCounter),
			userID:     userID,
			changeset:  copied,
			metadata:   metadata,
			createTime: time.Now().Unix(),
		}
		f.ledger[userID] = append([]runtime.WalletLedgerItem{item}, f.ledger[userID]...)
	}
}

func (f *testNakama) WalletUpdate(ctx context.Context, userID string, changeset map[string]int64, metadata map[string]interface{}, updateLedger bool) (map[string]int64, map[string]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.checkWalletLocked(userID, changeset); err != nil {
		return nil, nil, err
	}

	previous := make(map[string]int64, len(f.wallets[userID]))
	for currency, amount := range f.wallets[userID] {
		previous[currency] = amount
	}
	f.applyWalletLocked(userID, changeset, metadata, updateLedger)

	updated := make(map[string]int64, len(f.wallets[userID]))
	for currency, amount := range f.wallets[userID] {
		updated[currency] = amount
	}
	return updated, previous, nil
}

// MultiUpdate validates every storage write and wallet update before
// applying any of them, matching the all-or-nothing contract the engines
// rely on.
func (f *testNakama) MultiUpdate(ctx context.Context, accountUpdates []*runtime.AccountUpdate, storageWrites []*runtime.StorageWrite, storageDeletes []*runtime.StorageDelete, walletUpdates []*runtime.WalletUpdate, updateLedger bool) ([]*api.StorageObjectAck, []*runtime.WalletUpdateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, write := range storageWrites {
		if err := f.checkWriteLocked(write); err != nil {
			return nil, nil, err
		}
	}
	for _, update := range walletUpdates {
		if err := f.checkWalletLocked(update.UserID, update.Changeset); err != nil {
			return nil, nil, err
		}
	}

	acks := make([]*api.StorageObjectAck, 0, len(storageWrites))
	for _, write := range storageWrites {
		acks = append(acks, f.applyWriteLocked(write))
	}
	for _, update := range walletUpdates {
		f.applyWalletLocked(update.UserID, update.Changeset, update.Metadata, updateLedger)
	}
	return acks, nil, nil
}

func (f *testNakama) WalletLedgerList(ctx context.Context, userID string, limit int, cursor string) ([]runtime.WalletLedgerItem, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	items := f.ledger[userID]
	if limit > 0 && len(items) > limit {
		return items[:limit], "", nil
	}
	return items, "", nil
}

func (f *testNakama) AccountGetId(ctx context.Context, userID string) (*api.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	wallet := f.wallets[userID]
	if wallet == nil {
		wallet = make(map[string]int64)
	}
	data, err := json.Marshal(wallet)
	if err != nil {
		return nil, err
	}
	return &api.Account{Wallet: string(data)}, nil
}

func (f *testNakama) NotificationSend(ctx context.Context, userID, subject string, content map[string]interface{}, code int, sender string, persistent bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.notifications = append(f.notifications, &sentNotification{
		userID:  userID,
		subject: subject,
		content: content,
		code:    code,
	})
	return nil
}

func (f *testNakama) ReadFile(path string) (*os.File, error) {
	return os.Open(filepath.Join(f.configDir, path))
}

// setObject seeds a storage object directly, bypassing version checks.
func (f *testNakama) setObject(userID, collection, key string, value interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.Marshal(value)
	if err != nil {
		panic(err)
	}
	f.versionCounter++
	f.objects[objectKey(userID, collection, key)] = &storedObject{
		value:   string(data),
		version: fmt.Sprintf("v%d", f.versionCounter),
	}
}

func (f *testNakama) getObject(userID, collection, key string, out interface{}) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	stored, ok := f.objects[objectKey(userID, collection, key)]
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(stored.value), out); err != nil {
		panic(err)
	}
	return true
}

func (f *testNakama) balance(userID, currency string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.wallets[userID][currency]
}

func (f *testNakama) setBalance(userID string, changeset map[string]int64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	wallet := make(map[string]int64, len(changeset))
	for currency, amount := range changeset {
		wallet[currency] = amount
	}
	f.wallets[userID] = wallet
}

func (f *testNakama) notificationCount(code int) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	count := 0
	for _, notification := range f.notifications {
		if notification.code == code {
			count++
		}
	}
	return count
}

// testLedgerItem implements runtime.WalletLedgerItem for the fake ledger.
type testLedgerItem struct {
	id         string
	userID     string
	changeset  map[string]int64
	metadata   map[string]interface{}
	createTime int64
}

func (i *testLedgerItem) GetID() string                       { return i.id }
func (i *testLedgerItem) GetUserID() string                   { return i.userID }
func (i *testLedgerItem) GetCreateTime() int64                { return i.createTime }
func (i *testLedgerItem) GetUpdateTime() int64                { return i.createTime }
func (i *testLedgerItem) GetChangeset() map[string]int64      { return i.changeset }
func (i *testLedgerItem) GetMetadata() map[string]interface{} { return i.metadata }

// testLogger adapts a zap test logger to the runtime.Logger interface.
type testLogger struct {
	sugar  *zap.SugaredLogger
	fields map[string]interface{}
}

func newTestLogger(t *testing.T) *testLogger {
	return &testLogger{
		sugar:  zaptest.NewLogger(t).Sugar(),
		fields: make(map[string]interface{}),
	}
}

func (l *testLogger) Debug(format string, v ...interface{}) { l.sugar.Debugf(format, v...) }
func (l *testLogger) Info(format string, v ...interface{})  { l.sugar.Infof(format, v...) }
func (l *testLogger) Warn(format string, v ...interface{})  { l.sugar.Warnf(format, v...) }
func (l *testLogger) Error(format string, v ...interface{}) { l.sugar.Errorf(format, v...) }

func (l *testLogger) WithField(key string, v interface{}) runtime.Logger {
	return l.WithFields(map[string]interface{}{key: v})
}

func (l *testLogger) WithFields(fields map[string]interface{}) runtime.Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for key, value := range l.fields {
		merged[key] = value
	}
	args := make([]interface{}, 0, len(fields)*2)
	for key, value := range fields {
		merged[key] = value
		args = append(args, key, value)
	}
	return &testLogger{sugar: l.sugar.With(args...), fields: merged}
}

func (l *testLogger) Fields() map[string]interface{} { return l.fields }

// newTestCredforge wires systems together the way Init does, without config
// files.
func newTestCredforge(statsConfig *StatsConfig, achievementsConfig *AchievementsConfig, challengesConfig *ChallengesConfig, economyConfig *EconomyConfig) *credforgeImpl {
	cf := &credforgeImpl{systems: make(map[SystemType]System)}
	if statsConfig != nil {
		cf.systems[SystemTypeStats] = NewNakamaStatsSystem(statsConfig)
	}
	if achievementsConfig != nil {
		cf.systems[SystemTypeAchievements] = NewNakamaAchievementsSystem(achievementsConfig)
	}
	if challengesConfig != nil {
		cf.systems[SystemTypeChallenges] = NewNakamaChallengesSystem(challengesConfig)
	}
	if economyConfig != nil {
		cf.systems[SystemTypeEconomy] = NewNakamaEconomySystem(economyConfig)
	}
	for _, system := range cf.systems {
		if aware, ok := system.(credforgeAware); ok {
			aware.SetCredforge(cf)
		}
	}
	return cf
}
