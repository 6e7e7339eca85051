package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"accounts/internal/models"
	"accounts/internal/store"
)

type addressDocument struct {
	StreetName string `bson:"street_name,omitempty"`
	Pincode    string `bson:"pincode,omitempty"`
	State      string `bson:"state,omitempty"`
	Country    string `bson:"country,omitempty"`
}

type accountDocument struct {
	ID                     bson.ObjectID    `bson:"_id,omitempty"`
	Email                  string           `bson:"email"`
	PasswordHash           string           `bson:"password_hash"`
	FirstName              string           `bson:"first_name"`
	LastName               string           `bson:"last_name,omitempty"`
	About                  string           `bson:"about"`
	ProfilePhoto           *string          `bson:"profile_photo,omitempty"`
	Address                *addressDocument `bson:"address,omitempty"`
	IsAdmin                bool             `bson:"is_admin"`
	IsActive               bool             `bson:"is_active"`
	Gender                 string           `bson:"gender"`
	DateOfBirth            time.Time        `bson:"date_of_birth"`
	EducationQualification string           `bson:"education_qualification,omitempty"`
	CreatedAt              time.Time        `bson:"created_at"`
	UpdatedAt              time.Time        `bson:"updated_at"`
}

func toAddressDocument(a *models.Address) *addressDocument {
	if a == nil {
		return nil
	}
	return &addressDocument{StreetName: a.StreetName, Pincode: a.Pincode, State: a.State, Country: a.Country}
}

func (d *accountDocument) model() *models.Account {
	a := &models.Account{
		ID:                     d.ID.Hex(),
		Email:                  d.Email,
		PasswordHash:           d.PasswordHash,
		FirstName:              d.FirstName,
		LastName:               d.LastName,
		About:                  d.About,
		ProfilePhoto:           d.ProfilePhoto,
		IsAdmin:                d.IsAdmin,
		IsActive:               d.IsActive,
		Gender:                 models.Gender(d.Gender),
		DateOfBirth:            d.DateOfBirth.UTC(),
		EducationQualification: d.EducationQualification,
		CreatedAt:              d.CreatedAt.UTC(),
		UpdatedAt:              d.UpdatedAt.UTC(),
	}
	if d.Address != nil {
		a.Address = &models.Address{
			StreetName: d.Address.StreetName,
			Pincode:    d.Address.Pincode,
			State:      d.Address.State,
			Country:    d.Address.Country,
		}
	}
	return a
}

type AccountRepository struct {
	coll *mongo.Collection
}

var _ store.Accounts = (*AccountRepository)(nil)

func (r *AccountRepository) Create(ctx context.Context, a *models.Account) error {
	// Mongo keeps milliseconds only.
	now := time.Now().UTC().Truncate(time.Millisecond)
	doc := accountDocument{
		ID:                     bson.NewObjectID(),
		Email:                  a.Email,
		PasswordHash:           a.PasswordHash,
		FirstName:              a.FirstName,
		LastName:               a.LastName,
		About:                  a.About,
		ProfilePhoto:           a.ProfilePhoto,
		Address:                toAddressDocument(a.Address),
		IsAdmin:                a.IsAdmin,
		IsActive:               a.IsActive,
		Gender:                 string(a.Gender),
		DateOfBirth:            a.DateOfBirth.UTC(),
		EducationQualification: a.EducationQualification,
		CreatedAt:              now,
		UpdatedAt:              now,
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("creating account: %w", err)
	}

	a.ID = doc.ID.Hex()
	a.CreatedAt = now
	a.UpdatedAt = now
	return nil
}

func (r *AccountRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, bson.D{{Key: "_id", Value: oid}})
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.findOne(ctx, bson.D{{Key: "email", Value: email}})
}

func (r *AccountRepository) List(ctx context.Context, opts store.ListOptions) ([]*models.Account, int64, error) {
	total, err := r.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return nil, 0, fmt.Errorf("counting accounts: %w", err)
	}

	findOpts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(opts.Offset).
		SetLimit(opts.Limit)

	cursor, err := r.coll.Find(ctx, bson.D{}, findOpts)
	if err != nil {
		return nil, 0, fmt.Errorf("querying accounts: %w", err)
	}

	var docs []accountDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("decoding accounts: %w", err)
	}

	accounts := make([]*models.Account, 0, len(docs))
	for i := range docs {
		accounts = append(accounts, docs[i].model())
	}
	return accounts, total, nil
}

func (r *AccountRepository) Update(ctx context.Context, id string, patch models.AccountPatch) (*models.Account, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	set := bson.D{{Key: "updated_at", Value: time.Now().UTC()}}
	if patch.FirstName != nil {
		set = append(set, bson.E{Key: "first_name", Value: *patch.FirstName})
	}
	if patch.LastName != nil {
		set = append(set, bson.E{Key: "last_name", Value: *patch.LastName})
	}
	if patch.About != nil {
		set = append(set, bson.E{Key: "about", Value: *patch.About})
	}
	if patch.ProfilePhoto != nil {
		set = append(set, bson.E{Key: "profile_photo", Value: *patch.ProfilePhoto})
	}
	if patch.Address != nil {
		set = append(set, bson.E{Key: "address", Value: toAddressDocument(patch.Address)})
	}
	if patch.Gender != nil {
		set = append(set, bson.E{Key: "gender", Value: string(*patch.Gender)})
	}
	if patch.DateOfBirth != nil {
		set = append(set, bson.E{Key: "date_of_birth", Value: patch.DateOfBirth.UTC()})
	}
	if patch.EducationQualification != nil {
		set = append(set, bson.E{Key: "education_qualification", Value: *patch.EducationQualification})
	}

	return r.findOneAndSet(ctx, oid, set)
}

func (r *AccountRepository) SetPassword(ctx context.Context, id, passwordHash string) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}

	result, err := r.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: oid}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "password_hash", Value: passwordHash},
			{Key: "updated_at", Value: time.Now().UTC()},
		}}},
	)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	if result.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *AccountRepository) SetActive(ctx context.Context, id string, active bool) (*models.Account, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return r.findOneAndSet(ctx, oid, bson.D{
		{Key: "is_active", Value: active},
		{Key: "updated_at", Value: time.Now().UTC()},
	})
}

func (r *AccountRepository) SetAdmin(ctx context.Context, id string, admin bool) (*models.Account, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return r.findOneAndSet(ctx, oid, bson.D{
		{Key: "is_admin", Value: admin},
		{Key: "updated_at", Value: time.Now().UTC()},
	})
}

func (r *AccountRepository) Delete(ctx context.Context, id string) (*models.Account, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var doc accountDocument
	err = r.coll.FindOneAndDelete(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("deleting account: %w", err)
	}
	return doc.model(), nil
}

// DeleteNonAdmins collects the matching ids and photos first, then deletes
// exactly those ids so a photo is never reported for a surviving account.
func (r *AccountRepository) DeleteNonAdmins(ctx context.Context) (int64, []string, error) {
	nonAdmin := bson.E{Key: "is_admin", Value: bson.D{{Key: "$ne", Value: true}}}

	cursor, err := r.coll.Find(ctx, bson.D{nonAdmin},
		options.Find().SetProjection(bson.D{{Key: "_id", Value: 1}, {Key: "profile_photo", Value: 1}}))
	if err != nil {
		return 0, nil, fmt.Errorf("finding non-admin accounts: %w", err)
	}
	var docs []accountDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return 0, nil, fmt.Errorf("decoding non-admin accounts: %w", err)
	}
	if len(docs) == 0 {
		return 0, nil, nil
	}

	ids := make([]bson.ObjectID, 0, len(docs))
	var photos []string
	for _, d := range docs {
		ids = append(ids, d.ID)
		if d.ProfilePhoto != nil && *d.ProfilePhoto != "" {
			photos = append(photos, *d.ProfilePhoto)
		}
	}

	result, err := r.coll.DeleteMany(ctx, bson.D{
		{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}},
		nonAdmin,
	})
	if err != nil {
		return 0, nil, fmt.Errorf("deleting non-admin accounts: %w", err)
	}
	return result.DeletedCount, photos, nil
}

func (r *AccountRepository) findOne(ctx context.Context, filter bson.D) (*models.Account, error) {
	var doc accountDocument
	err := r.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying account: %w", err)
	}
	return doc.model(), nil
}

func (r *AccountRepository) findOneAndSet(ctx context.Context, oid bson.ObjectID, set bson.D) (*models.Account, error) {
	var doc accountDocument
	err := r.coll.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: oid}},
		bson.D{{Key: "$set", Value: set}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("updating account: %w", err)
	}
	return doc.model(), nil
}
