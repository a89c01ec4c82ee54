package repository

import (
	"context"
	"errors"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"streetlight-watch/models"
)

const (
	usersCollection   = "users"
	reportsCollection = "reports"
)

// MongoStore implements Store on MongoDB.
type MongoStore struct {
	db      *mongo.Database
	users   *mongo.Collection
	reports *mongo.Collection
	timeout time.Duration
}

func NewMongoStore(db *mongo.Database, timeout time.Duration) *MongoStore {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &MongoStore{
		db:      db,
		users:   db.Collection(usersCollection),
		reports: db.Collection(reportsCollection),
		timeout: timeout,
	}
}

func (s *MongoStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func (s *MongoStore) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.db.Client().Ping(ctx, readpref.Primary())
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}

func (s *MongoStore) updateUser(ctx context.Context, id primitive.ObjectID, update bson.M) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.users.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) updateReport(ctx context.Context, id primitive.ObjectID, update bson.M) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.reports.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ====================== USERS ======================

func (s *MongoStore) CreateUser(ctx context.Context, user *models.User) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	if _, err := s.users.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

func (s *MongoStore) FindUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return s.findUser(ctx, bson.M{"_id": id})
}

func (s *MongoStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"email": email})
}

func (s *MongoStore) FindUserByResetToken(ctx context.Context, digest string, now time.Time) (*models.User, error) {
	return s.findUser(ctx, bson.M{
		"passwordResetToken":   digest,
		"passwordResetExpires": bson.M{"$gt": now},
	})
}

func (s *MongoStore) findUser(ctx context.Context, filter bson.M) (*models.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var user models.User
	if err := s.users.FindOne(ctx, filter).Decode(&user); err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (s *MongoStore) ListUsers(ctx context.Context) ([]models.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	cursor, err := s.users.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	users := []models.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *MongoStore) IncrementLoginAttempts(ctx context.Context, id primitive.ObjectID, lockUntil *time.Time) error {
	update := bson.M{"$inc": bson.M{"loginAttempts": 1}}
	if lockUntil != nil {
		update["$set"] = bson.M{"lockUntil": *lockUntil}
	}
	return s.updateUser(ctx, id, update)
}

func (s *MongoStore) ResetLoginAttempts(ctx context.Context, id primitive.ObjectID, attempts int) error {
	return s.updateUser(ctx, id, bson.M{
		"$set":   bson.M{"loginAttempts": attempts},
		"$unset": bson.M{"lockUntil": ""},
	})
}

func (s *MongoStore) RecordLogin(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	return s.updateUser(ctx, id, bson.M{
		"$set":   bson.M{"loginAttempts": 0, "lastLogin": at},
		"$unset": bson.M{"lockUntil": ""},
	})
}

func (s *MongoStore) UpdatePassword(ctx context.Context, id primitive.ObjectID, hash string, changedAt time.Time) error {
	return s.updateUser(ctx, id, bson.M{
		"$set": bson.M{
			"password":          hash,
			"passwordChangedAt": changedAt,
			"updatedAt":         time.Now(),
		},
		"$unset": bson.M{"passwordResetToken": "", "passwordResetExpires": ""},
	})
}

func (s *MongoStore) SetPasswordResetToken(ctx context.Context, id primitive.ObjectID, digest string, expires time.Time) error {
	return s.updateUser(ctx, id, bson.M{
		"$set": bson.M{"passwordResetToken": digest, "passwordResetExpires": expires},
	})
}

func (s *MongoStore) UpdateProfile(ctx context.Context, id primitive.ObjectID, update ProfileUpdate) (*models.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	set := bson.M{"updatedAt": time.Now()}
	if update.Name != nil {
		set["name"] = *update.Name
	}
	if update.Phone != nil {
		set["phone"] = *update.Phone
	}
	if update.Address != nil {
		set["address"] = *update.Address
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var user models.User
	if err := s.users.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&user); err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (s *MongoStore) IncrementReportsSubmitted(ctx context.Context, id primitive.ObjectID) error {
	return s.updateUser(ctx, id, bson.M{"$inc": bson.M{"reportsSubmitted": 1}})
}

func (s *MongoStore) IncrementReportsResolved(ctx context.Context, id primitive.ObjectID) error {
	return s.updateUser(ctx, id, bson.M{"$inc": bson.M{"reportsResolved": 1}})
}

func (s *MongoStore) CountUsersByRole(ctx context.Context) ([]RoleCount, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	pipeline := []bson.M{
		{
			"$group": bson.M{
				"_id":              "$role",
				"count":            bson.M{"$sum": 1},
				"reportsSubmitted": bson.M{"$sum": "$reportsSubmitted"},
				"reportsResolved":  bson.M{"$sum": "$reportsResolved"},
			},
		},
		{"$sort": bson.M{"_id": 1}},
	}

	cursor, err := s.users.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	counts := []RoleCount{}
	if err := cursor.All(ctx, &counts); err != nil {
		return nil, err
	}
	return counts, nil
}

// ====================== REPORTS ======================

func (s *MongoStore) InsertReport(ctx context.Context, report *models.Report) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if report.ID.IsZero() {
		report.ID = primitive.NewObjectID()
	}
	now := time.Now()
	if report.CreatedAt.IsZero() {
		report.CreatedAt = now
	}
	report.UpdatedAt = now

	_, err := s.reports.InsertOne(ctx, report)
	return err
}

func (s *MongoStore) FindReportByID(ctx context.Context, id primitive.ObjectID) (*models.Report, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var report models.Report
	if err := s.reports.FindOne(ctx, bson.M{"_id": id}).Decode(&report); err != nil {
		return nil, notFound(err)
	}
	return &report, nil
}

func (s *MongoStore) SaveReport(ctx context.Context, report *models.Report) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	report.UpdatedAt = time.Now()
	res, err := s.reports.ReplaceOne(ctx, bson.M{"_id": report.ID}, report)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) DeleteReport(ctx context.Context, id primitive.ObjectID) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.reports.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func buildReportQuery(f ReportFilter) bson.M {
	query := bson.M{}
	var and []bson.M

	if f.Status != "" {
		query["status"] = f.Status
	}
	if f.LightCondition != "" {
		query["lightCondition"] = f.LightCondition
	}
	if f.Severity != "" {
		query["severity"] = f.Severity
	}
	if f.City != "" {
		query["location.city"] = f.City
	}
	if f.ReportedBy != nil {
		query["reportedBy"] = *f.ReportedBy
	}
	if f.Search != "" {
		pattern := regexp.QuoteMeta(f.Search)
		and = append(and, bson.M{"$or": []bson.M{
			{"title": bson.M{"$regex": pattern, "$options": "i"}},
			{"description": bson.M{"$regex": pattern, "$options": "i"}},
		}})
	}
	if f.WorkerID != nil {
		and = append(and, bson.M{"$or": []bson.M{
			{"status": bson.M{"$in": []models.Status{models.StatusAssigned, models.StatusInProgress}}},
			{"assignedTo": *f.WorkerID},
		}})
	}
	if len(and) > 0 {
		query["$and"] = and
	}
	return query
}

func (s *MongoStore) ListReports(ctx context.Context, f ReportFilter) ([]models.Report, int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := buildReportQuery(f)

	total, err := s.reports.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	sortBy := f.SortBy
	if !SortableFields[sortBy] {
		sortBy = "createdAt"
	}
	direction := 1
	if f.SortDesc {
		direction = -1
	}

	findOptions := options.Find().
		SetSort(bson.D{{Key: sortBy, Value: direction}, {Key: "_id", Value: direction}}).
		SetSkip(f.Skip)
	if f.Limit > 0 {
		findOptions.SetLimit(f.Limit)
	}

	cursor, err := s.reports.Find(ctx, query, findOptions)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	reports := []models.Report{}
	if err := cursor.All(ctx, &reports); err != nil {
		return nil, 0, err
	}
	return reports, total, nil
}

// FindNear relies on the 2dsphere index; $near returns documents sorted
// by distance.
func (s *MongoStore) FindNear(ctx context.Context, q NearQuery) ([]models.Report, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	filter := bson.M{
		"location": bson.M{
			"$near": bson.M{
				"$geometry": bson.M{
					"type":        "Point",
					"coordinates": bson.A{q.Lng, q.Lat},
				},
				"$maxDistance": q.RadiusMeters,
			},
		},
	}
	if q.ExcludeID != nil {
		filter["_id"] = bson.M{"$ne": *q.ExcludeID}
	}
	if len(q.Statuses) > 0 {
		filter["status"] = bson.M{"$in": q.Statuses}
	}

	findOptions := options.Find()
	if q.Limit > 0 {
		findOptions.SetLimit(q.Limit)
	}

	cursor, err := s.reports.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	reports := []models.Report{}
	if err := cursor.All(ctx, &reports); err != nil {
		return nil, err
	}
	return reports, nil
}

func (s *MongoStore) IncrementDuplicateCount(ctx context.Context, id primitive.ObjectID) error {
	return s.updateReport(ctx, id, bson.M{"$inc": bson.M{"duplicateCount": 1}})
}

func (s *MongoStore) IncrementViewCount(ctx context.Context, id primitive.ObjectID) error {
	return s.updateReport(ctx, id, bson.M{"$inc": bson.M{"viewCount": 1}})
}

func (s *MongoStore) CountByStatus(ctx context.Context) ([]StatusCount, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	pipeline := []bson.M{
		{"$group": bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}},
		{"$sort": bson.M{"_id": 1}},
	}

	cursor, err := s.reports.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	counts := []StatusCount{}
	if err := cursor.All(ctx, &counts); err != nil {
		return nil, err
	}
	return counts, nil
}

func (s *MongoStore) DailyCounts(ctx context.Context, since time.Time) ([]DailyCount, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	pipeline := []bson.M{
		{"$match": bson.M{"createdAt": bson.M{"$gte": since}}},
		{
			"$group": bson.M{
				"_id": bson.M{
					"$dateToString": bson.M{"format": "%Y-%m-%d", "date": "$createdAt"},
				},
				"count": bson.M{"$sum": 1},
				"resolved": bson.M{
					"$sum": bson.M{"$cond": bson.A{bson.M{"$in": bson.A{"$status", resolvedStatuses}}, 1, 0}},
				},
			},
		},
		{"$sort": bson.M{"_id": 1}},
		{
			"$project": bson.M{
				"_id":      0,
				"date":     "$_id",
				"count":    1,
				"resolved": 1,
				"pending":  bson.M{"$subtract": bson.A{"$count", "$resolved"}},
			},
		},
	}

	cursor, err := s.reports.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	counts := []DailyCount{}
	if err := cursor.All(ctx, &counts); err != nil {
		return nil, err
	}
	return counts, nil
}
