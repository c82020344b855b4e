package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
)

// TxRunner runs callbacks inside a multi-document transaction. The server
// must be a replica set member or mongos.
type TxRunner struct {
	client *mongo.Client
}

func NewTxRunner(client *mongo.Client) *TxRunner {
	return &TxRunner{client: client}
}

func (t *TxRunner) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := t.client.StartSession()
	if err != nil {
		return storeError(err, "start session")
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}
