package storage

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore persists the ciphertext/metadata boundary in MongoDB. Envelopes
// land as binary BSON; nothing stored here can be decrypted server-side.
type MongoStore struct {
	client   *mongo.Client
	users    *mongo.Collection
	vaults   *mongo.Collection
	keys     *mongo.Collection
	secrets  *mongo.Collection
	versions *mongo.Collection
}

func NewMongoStore(ctx context.Context, uri, dbName string) (*MongoStore, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is empty")
	}
	cli, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := cli.Ping(pctx, nil); err != nil {
		_ = cli.Disconnect(ctx)
		return nil, err
	}
	return NewMongoStoreWithClient(ctx, cli, dbName)
}

func NewMongoStoreWithClient(ctx context.Context, cli *mongo.Client, dbName string) (*MongoStore, error) {
	db := cli.Database(dbName)
	s := &MongoStore{
		client:   cli,
		users:    db.Collection("users"),
		vaults:   db.Collection("vaults"),
		keys:     db.Collection("vault_keys"),
		secrets:  db.Collection("secrets"),
		versions: db.Collection("secret_versions"),
	}

	_, _ = s.keys.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "vault_id", Value: 1}, {Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	_, _ = s.secrets.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "vault_id", Value: 1}, {Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	_, _ = s.versions.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "vault_id", Value: 1}, {Key: "name", Value: 1}, {Key: "version", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return s, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) AddUser(ctx context.Context, u UserRecord) error {
	_, err := s.users.InsertOne(ctx, u)
	if mongo.IsDuplicateKeyError(err) {
		return ErrExists
	}
	return err
}

func (s *MongoStore) GetUser(ctx context.Context, username string) (UserRecord, error) {
	var u UserRecord
	err := s.users.FindOne(ctx, bson.M{"_id": username}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return UserRecord{}, ErrNotFound
	}
	return u, err
}

func (s *MongoStore) UpdateUserKeys(ctx context.Context, u UserRecord) error {
	res, err := s.users.UpdateByID(ctx, u.Username, bson.M{"$set": bson.M{
		"pass_hash":        u.PassHash,
		"salt":             u.Salt,
		"kdf":              u.KDF,
		"public_key":       u.PublicKey,
		"private_key_wrap": u.PrivateKeyWrap,
		"recovery_wrap":    u.RecoveryWrap,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplaceCredentials runs the record update and the key upserts in one
// transaction. Needs a deployment that supports transactions (replica set);
// a standalone mongod cannot give the all-or-nothing this flow requires.
func (s *MongoStore) ReplaceCredentials(ctx context.Context, u UserRecord, keys []VaultKeyRecord) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		if err := s.UpdateUserKeys(sc, u); err != nil {
			return nil, err
		}
		for _, k := range keys {
			if err := s.PutVaultKey(sc, k); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}

func (s *MongoStore) CreateVault(ctx context.Context, v Vault) error {
	_, err := s.vaults.InsertOne(ctx, v)
	if mongo.IsDuplicateKeyError(err) {
		return ErrExists
	}
	return err
}

func (s *MongoStore) GetVault(ctx context.Context, id string) (Vault, error) {
	var v Vault
	err := s.vaults.FindOne(ctx, bson.M{"_id": id}).Decode(&v)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Vault{}, ErrNotFound
	}
	return v, err
}

func (s *MongoStore) ListVaults(ctx context.Context, username string) ([]Vault, error) {
	recs, err := s.ListVaultKeys(ctx, username)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, r.VaultID)
	}
	cur, err := s.vaults.Find(ctx, bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var out []Vault
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) PutVaultKey(ctx context.Context, rec VaultKeyRecord) error {
	if _, err := s.GetVault(ctx, rec.VaultID); err != nil {
		return err
	}
	_, err := s.keys.UpdateOne(ctx,
		bson.M{"vault_id": rec.VaultID, "username": rec.Username},
		bson.M{"$set": bson.M{"wrapped": rec.Wrapped}},
		options.Update().SetUpsert(true),
	)
	return err
}

func (s *MongoStore) GetVaultKey(ctx context.Context, vaultID, username string) (VaultKeyRecord, error) {
	var rec VaultKeyRecord
	err := s.keys.FindOne(ctx, bson.M{"vault_id": vaultID, "username": username}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return VaultKeyRecord{}, ErrNotFound
	}
	return rec, err
}

func (s *MongoStore) ListVaultKeys(ctx context.Context, username string) ([]VaultKeyRecord, error) {
	cur, err := s.keys.Find(ctx, bson.M{"username": username},
		options.Find().SetSort(bson.D{{Key: "vault_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var out []VaultKeyRecord
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) DeleteVaultKey(ctx context.Context, vaultID, username string) error {
	res, err := s.keys.DeleteOne(ctx, bson.M{"vault_id": vaultID, "username": username})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// PutSecret relies on the compound filter to enforce the version discipline:
// the update only matches when the stored version is exactly s.Version-1, and
// inserts only happen at version 1.
func (s *MongoStore) PutSecret(ctx context.Context, sec Secret) error {
	if sec.Version == 1 {
		_, err := s.secrets.InsertOne(ctx, sec)
		if mongo.IsDuplicateKeyError(err) {
			return ErrVersionConflict
		}
		if err != nil {
			return err
		}
	} else {
		res, err := s.secrets.UpdateOne(ctx,
			bson.M{"vault_id": sec.VaultID, "name": sec.Name, "version": sec.Version - 1},
			bson.M{"$set": bson.M{
				"version":    sec.Version,
				"envelope":   sec.Envelope,
				"updated_by": sec.UpdatedBy,
				"updated_at": sec.UpdatedAt,
			}},
		)
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return ErrVersionConflict
		}
	}
	_, err := s.versions.InsertOne(ctx, SecretVersion{
		VaultID:   sec.VaultID,
		Name:      sec.Name,
		Version:   sec.Version,
		Envelope:  sec.Envelope,
		Author:    sec.UpdatedBy,
		CreatedAt: sec.UpdatedAt,
	})
	return err
}

func (s *MongoStore) GetSecret(ctx context.Context, vaultID, name string) (Secret, error) {
	var sec Secret
	err := s.secrets.FindOne(ctx, bson.M{"vault_id": vaultID, "name": name}).Decode(&sec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Secret{}, ErrNotFound
	}
	return sec, err
}

func (s *MongoStore) ListSecrets(ctx context.Context, vaultID string) ([]Secret, error) {
	cur, err := s.secrets.Find(ctx, bson.M{"vault_id": vaultID},
		options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var out []Secret
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) ListSecretVersions(ctx context.Context, vaultID, name string) ([]SecretVersion, error) {
	cur, err := s.versions.Find(ctx, bson.M{"vault_id": vaultID, "name": name},
		options.Find().SetSort(bson.D{{Key: "version", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var out []SecretVersion
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

func (s *MongoStore) GetSecretVersion(ctx context.Context, vaultID, name string, version int) (SecretVersion, error) {
	var v SecretVersion
	err := s.versions.FindOne(ctx, bson.M{"vault_id": vaultID, "name": name, "version": version}).Decode(&v)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return SecretVersion{}, ErrNotFound
	}
	return v, err
}
