package main

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	mgo "gopkg.in/mgo.v2"
	redis "gopkg.in/redis.v5"

	"github.com/AfafAlalwan/arch-forest/dataset"
	"github.com/AfafAlalwan/arch-forest/dataset/mongodataset"
	"github.com/AfafAlalwan/arch-forest/dataset/sqldataset"
	"github.com/AfafAlalwan/arch-forest/tree"
	"github.com/AfafAlalwan/arch-forest/tree/json"
	"github.com/AfafAlalwan/arch-forest/tree/mongostore"
	"github.com/AfafAlalwan/arch-forest/tree/msgpack"
	"github.com/AfafAlalwan/arch-forest/tree/redisstore"
	"github.com/AfafAlalwan/arch-forest/tree/sqlstore"
	"github.com/AfafAlalwan/arch-forest/tree/sqlstore/mysqladapter"
	"github.com/AfafAlalwan/arch-forest/tree/sqlstore/pgadapter"
	"github.com/AfafAlalwan/arch-forest/tree/sqlstore/sqlite3adapter"
)

type backend int

const (
	fileBackend backend = iota
	redisBackend
	mongoBackend
	sqliteBackend
	postgresBackend
	mysqlBackend
)

func backendFor(location string) backend {
	switch {
	case strings.HasPrefix(location, "redis://"):
		return redisBackend
	case strings.HasPrefix(location, "mongodb://"):
		return mongoBackend
	case strings.HasPrefix(location, "postgres://"), strings.HasPrefix(location, "postgresql://"):
		return postgresBackend
	case strings.HasPrefix(location, "mysql://"):
		return mysqlBackend
	case strings.HasPrefix(location, "sqlite3://"), strings.HasSuffix(location, ".db"):
		return sqliteBackend
	}
	return fileBackend
}

// redisKeyPrefix is the prefix of the keys of a forest on redis
func redisKeyPrefix(forestID string) string {
	return "archforest:forests:" + forestID
}

// redisOptions takes a redis://host:port/db URL and
// returns the options for a client to it
func redisOptions(location string) (*redis.Options, error) {
	u, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %v", err)
	}
	opts := &redis.Options{Addr: u.Host}
	if u.User != nil {
		opts.Password, _ = u.User.Password()
	}
	if db := strings.Trim(u.Path, "/"); db != "" {
		opts.DB, err = strconv.Atoi(db)
		if err != nil {
			return nil, fmt.Errorf("parsing redis URL: database %q is not a number", db)
		}
	}
	return opts, nil
}

func sqlAdapter(location string, maxConns int) (sqlstore.Adapter, error) {
	switch backendFor(location) {
	case sqliteBackend:
		return sqlite3adapter.New(strings.TrimPrefix(location, "sqlite3://"), maxConns)
	case postgresBackend:
		return pgadapter.New(location, maxConns)
	case mysqlBackend:
		return mysqladapter.New(strings.TrimPrefix(location, "mysql://"), maxConns)
	}
	return nil, fmt.Errorf("%s is not a database URL", location)
}

// sessionStore closes the session it was opened on with the store
type sessionStore struct {
	tree.ForestStore
	session *mgo.Session
}

func (ss *sessionStore) Close(ctx context.Context) error {
	defer ss.session.Close()
	return ss.ForestStore.Close(ctx)
}

// redisClientStore closes its redis client with the store
type redisClientStore struct {
	tree.ForestStore
	rc *redis.Client
}

func (rs *redisClientStore) Close(ctx context.Context) error {
	defer rs.rc.Close()
	return rs.ForestStore.Close(ctx)
}

/*
openStore takes a context, the location of a store, a forest id and a
limit of database connections and returns the tree.ForestStore for the
forest on the store. Locations are redis://, mongodb://, postgres:// and
mysql:// URLs, or paths to SQLite3 .db files.
*/
func openStore(ctx context.Context, location, forestID string, maxConns int, l logger) (tree.ForestStore, error) {
	if forestID == "" {
		return nil, fmt.Errorf("opening forest store at %s: a forest id is required", location)
	}
	switch backendFor(location) {
	case redisBackend:
		opts, err := redisOptions(location)
		if err != nil {
			return nil, err
		}
		l.Logf("Connecting to redis at %s...", opts.Addr)
		rc := redis.NewClient(opts)
		return &redisClientStore{redisstore.New(rc, redisKeyPrefix(forestID), json.NewNodeEncodeDecoder()), rc}, nil
	case mongoBackend:
		l.Logf("Connecting to MongoDB at %s...", location)
		session, err := mgo.Dial(location)
		if err != nil {
			return nil, fmt.Errorf("connecting to MongoDB: %v", err)
		}
		fs, err := mongostore.Open(ctx, session, forestID)
		if err != nil {
			session.Close()
			return nil, err
		}
		return &sessionStore{fs, session}, nil
	case sqliteBackend, postgresBackend, mysqlBackend:
		l.Logf("Creating database adapter for %s...", location)
		adapter, err := sqlAdapter(location, maxConns)
		if err != nil {
			return nil, err
		}
		fs, err := sqlstore.Open(ctx, adapter, forestID)
		if err != nil {
			adapter.DB().Close()
			return nil, err
		}
		return fs, nil
	}
	return nil, fmt.Errorf("%s is not a forest store location", location)
}

/*
readForest takes a context, the location of a forest, a forest id for
stores and a limit of database connections and returns the forest.
Besides store locations, it reads MessagePack files (.msgpack or .mp)
and JSON files, and JSON from STDIN for an empty location.
*/
func readForest(ctx context.Context, location, forestID string, maxConns int, l logger) (*tree.Forest, error) {
	if backendFor(location) != fileBackend {
		fs, err := openStore(ctx, location, forestID, maxConns, l)
		if err != nil {
			return nil, err
		}
		defer fs.Close(ctx)
		l.Logf("Loading forest %s...", forestID)
		return tree.LoadForest(ctx, fs)
	}
	switch strings.ToLower(filepath.Ext(location)) {
	case ".msgpack", ".mp":
		l.Logf("Reading forest from %s as MessagePack...", location)
		return msgpack.ReadForestFromFilePath(location)
	}
	if location == "" {
		l.Logf("Reading forest from STDIN as JSON...")
	} else {
		l.Logf("Reading forest from %s as JSON...", location)
	}
	return json.ReadForestFromFilePath(location)
}

// samplesSource describes where the samples of a verification are read
type samplesSource struct {
	location   string
	query      string
	collection string
	maxConns   int
}

/*
open takes a context and the dimensionality of a forest and returns the
dataset with the samples and a function to release it. Samples are read
from a MongoDB collection, from the rows of an SQL query or from a CSV
file, or STDIN for an empty location.
*/
func (ss *samplesSource) open(ctx context.Context, dim int, l logger) (dataset.Dataset, func(), error) {
	switch backendFor(ss.location) {
	case mongoBackend:
		l.Logf("Connecting to MongoDB at %s...", ss.location)
		session, err := mgo.Dial(ss.location)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to MongoDB: %v", err)
		}
		ds, err := mongodataset.Open(ctx, session, ss.collection, dim)
		if err != nil {
			session.Close()
			return nil, nil, err
		}
		return ds, session.Close, nil
	case sqliteBackend, postgresBackend, mysqlBackend:
		if ss.query == "" {
			return nil, nil, fmt.Errorf("reading samples from %s: a query is required", ss.location)
		}
		adapter, err := sqlAdapter(ss.location, ss.maxConns)
		if err != nil {
			return nil, nil, err
		}
		return sqldataset.New(adapter.DB(), ss.query), func() { adapter.DB().Close() }, nil
	case redisBackend:
		return nil, nil, fmt.Errorf("reading samples from redis is not supported")
	}
	if ss.location == "" {
		l.Logf("Reading samples from STDIN as CSV...")
	} else {
		l.Logf("Reading samples from %s as CSV...", ss.location)
	}
	samples, err := dataset.ReadFromFilePath(ss.location)
	if err != nil {
		return nil, nil, err
	}
	return dataset.New(samples), func() {}, nil
}
