package db

import (
	"context"
	"fmt"
	"time"

	"github.com/democredit/wallet-service/internal/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDB keeps the three append-only transaction logs: fundings,
// withdrawals and transfers. Writes are acknowledged before the call
// returns; listings come back in insertion order.
type MongoDB struct {
	client      *mongo.Client
	fundings    *mongo.Collection
	withdrawals *mongo.Collection
	transfers   *mongo.Collection
	timeout     time.Duration
}

// creates a new MongoDB instance and ensures the per-account indexes exist
func NewMongoDB(uri, dbName string, timeout time.Duration) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Mongodb: %w", err)
	}

	// pinging the database
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping Mongodb: %w", err)
	}

	database := client.Database(dbName)
	m := &MongoDB{
		client:      client,
		fundings:    database.Collection("fundings"),
		withdrawals: database.Collection("withdrawals"),
		transfers:   database.Collection("transfers"),
		timeout:     timeout,
	}

	indexes := map[*mongo.Collection]string{
		m.fundings:    "to_account",
		m.withdrawals: "from_account",
		m.transfers:   "from_account",
	}
	for collection, key := range indexes {
		_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys: bson.D{{Key: key, Value: 1}},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create index on %s: %w", collection.Name(), err)
		}
	}

	return m, nil
}

// closes the mongoDB connection
func (m *MongoDB) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *MongoDB) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, m.timeout)
}

// AppendFunding records one credit. The funding gets a fresh uuid and its
// creation timestamp here if not already set.
func (m *MongoDB) AppendFunding(ctx context.Context, funding *models.Funding) error {
	ctx, cancel := m.opCtx(ctx)
	defer cancel()

	if funding.FundingID == "" {
		funding.FundingID = uuid.New().String()
	}
	if funding.CreatedAt.IsZero() {
		funding.CreatedAt = time.Now().UTC()
	}

	if _, err := m.fundings.InsertOne(ctx, funding); err != nil {
		return storeErr(fmt.Errorf("failed to insert funding: %w", err))
	}
	return nil
}

// AppendWithdrawal records one debit.
func (m *MongoDB) AppendWithdrawal(ctx context.Context, withdrawal *models.Withdrawal) error {
	ctx, cancel := m.opCtx(ctx)
	defer cancel()

	if withdrawal.WithdrawalID == "" {
		withdrawal.WithdrawalID = uuid.New().String()
	}
	if withdrawal.CreatedAt.IsZero() {
		withdrawal.CreatedAt = time.Now().UTC()
	}

	if _, err := m.withdrawals.InsertOne(ctx, withdrawal); err != nil {
		return storeErr(fmt.Errorf("failed to insert withdrawal: %w", err))
	}
	return nil
}

// AppendTransfer upserts on the "{from}-{to}" id, so a repeat transfer
// between the same ordered pair supersedes the previous record.
func (m *MongoDB) AppendTransfer(ctx context.Context, transfer *models.Transfer) error {
	ctx, cancel := m.opCtx(ctx)
	defer cancel()

	if transfer.CreatedAt.IsZero() {
		transfer.CreatedAt = time.Now().UTC()
	}

	opts := options.Replace().SetUpsert(true)
	_, err := m.transfers.ReplaceOne(ctx, bson.M{"_id": transfer.TransferID}, transfer, opts)
	if err != nil {
		return storeErr(fmt.Errorf("failed to upsert transfer: %w", err))
	}
	return nil
}

// ListFundingsFor retrieves all credits received by an account, oldest first.
func (m *MongoDB) ListFundingsFor(ctx context.Context, accountID string) ([]models.Funding, error) {
	ctx, cancel := m.opCtx(ctx)
	defer cancel()

	fundings := []models.Funding{}
	if err := m.list(ctx, m.fundings, "to_account", accountID, &fundings); err != nil {
		return nil, err
	}
	return fundings, nil
}

// ListWithdrawalsFor retrieves all debits made by an account, oldest first.
func (m *MongoDB) ListWithdrawalsFor(ctx context.Context, accountID string) ([]models.Withdrawal, error) {
	ctx, cancel := m.opCtx(ctx)
	defer cancel()

	withdrawals := []models.Withdrawal{}
	if err := m.list(ctx, m.withdrawals, "from_account", accountID, &withdrawals); err != nil {
		return nil, err
	}
	return withdrawals, nil
}

// ListTransfersFrom retrieves all transfers sent by an account, oldest first.
func (m *MongoDB) ListTransfersFrom(ctx context.Context, accountID string) ([]models.Transfer, error) {
	ctx, cancel := m.opCtx(ctx)
	defer cancel()

	transfers := []models.Transfer{}
	if err := m.list(ctx, m.transfers, "from_account", accountID, &transfers); err != nil {
		return nil, err
	}
	return transfers, nil
}

func (m *MongoDB) list(ctx context.Context, collection *mongo.Collection, key, accountID string, out interface{}) error {
	// Natural order is insertion order; created_at alone can tie within a
	// timestamp granule.
	opts := options.Find().SetSort(bson.D{{Key: "$natural", Value: 1}})

	cursor, err := collection.Find(ctx, bson.M{key: accountID}, opts)
	if err != nil {
		return storeErr(fmt.Errorf("failed to find %s: %w", collection.Name(), err))
	}
	defer cursor.Close(ctx)

	if err := cursor.All(ctx, out); err != nil {
		return storeErr(fmt.Errorf("failed to decode %s: %w", collection.Name(), err))
	}
	return nil
}
