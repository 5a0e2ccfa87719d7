package layer

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoLocation addresses a collection of GeoJSON feature documents:
//
//	mongodb://host:27017/gis?collection=soils&crs=EPSG:4326
//
// Documents have the shape {"type": "Feature", "geometry": {...}, "properties": {...}}.
type MongoLocation struct {
	URI        string
	Database   string
	Collection string
	CRS        CRS
}

// ParseMongoLocation splits database, collection and CRS off a MongoDB URI.
// Collections without an explicit crs parameter are taken as EPSG:4326, the
// only CRS 2dsphere indexes accept.
func ParseMongoLocation(raw string) (MongoLocation, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return MongoLocation{}, fmt.Errorf("invalid mongodb location: %w", err)
	}
	q := u.Query()
	loc := MongoLocation{
		Database:   strings.Trim(u.Path, "/"),
		Collection: q.Get("collection"),
		CRS:        CRS{AuthID: "EPSG:4326"},
	}
	if c := q.Get("crs"); c != "" {
		loc.CRS = CRS{AuthID: c}
	}
	if loc.Database == "" || loc.Collection == "" {
		return MongoLocation{}, fmt.Errorf("mongodb location %q needs a database path and a collection parameter", u.Redacted())
	}
	q.Del("collection")
	q.Del("crs")
	u.RawQuery = q.Encode()
	u.Path = "/"
	loc.URI = u.String()
	return loc, nil
}

// MongoRepository reads and writes layers stored as feature documents.
type MongoRepository struct {
	client *mongo.Client
}

// ConnectMongo opens a client for uri.
func ConnectMongo(ctx context.Context, uri string) (*MongoRepository, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	return &MongoRepository{client: client}, nil
}

// Close disconnects the client.
func (r *MongoRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

type mongoFeature struct {
	Geometry   bson.Raw `bson:"geometry"`
	Properties bson.D   `bson:"properties"`
}

// Read loads the collection in _id order.
func (r *MongoRepository) Read(ctx context.Context, loc MongoLocation) (*Layer, error) {
	coll := r.client.Database(loc.Database).Collection(loc.Collection)
	cur, err := coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query collection %s: %w", loc.Collection, err)
	}
	defer cur.Close(ctx)

	l := &Layer{Name: loc.Collection, CRS: loc.CRS}
	var order []string
	for n := 0; cur.Next(ctx); n++ {
		var doc mongoFeature
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("error decoding document %d: %w", n, err)
		}
		var g geom.T = geom.NewMultiPolygon(geom.XY)
		if len(doc.Geometry) > 0 {
			js, err := bson.MarshalExtJSON(doc.Geometry, false, false)
			if err != nil {
				return nil, fmt.Errorf("error converting geometry of document %d: %w", n, err)
			}
			if err := geojson.Unmarshal(js, &g); err != nil {
				return nil, fmt.Errorf("error decoding geometry of document %d: %w", n, err)
			}
		}
		attrs := make(map[string]Value, len(doc.Properties))
		keys := make([]string, 0, len(doc.Properties))
		for _, e := range doc.Properties {
			attrs[e.Key] = FromAny(e.Value)
			keys = append(keys, e.Key)
		}
		order = mergeOrder(order, keys)
		l.Features = append(l.Features, Feature{Geometry: g, Attributes: attrs})
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate collection %s: %w", loc.Collection, err)
	}
	l.Fields = InferFields(order, l.Features)
	return l, nil
}

// Write replaces the collection with the features of l.
func (r *MongoRepository) Write(ctx context.Context, loc MongoLocation, l *Layer) error {
	coll := r.client.Database(loc.Database).Collection(loc.Collection)
	if err := coll.Drop(ctx); err != nil {
		return fmt.Errorf("failed to drop collection %s: %w", loc.Collection, err)
	}
	if len(l.Features) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(l.Features))
	for i, f := range l.Features {
		g := f.Geometry
		if g == nil {
			g = geom.NewMultiPolygon(geom.XY)
		}
		js, err := geojson.Marshal(g)
		if err != nil {
			return fmt.Errorf("error encoding geometry of feature %d: %w", i, err)
		}
		var geometry bson.D
		if err := bson.UnmarshalExtJSON(js, false, &geometry); err != nil {
			return fmt.Errorf("error converting geometry of feature %d: %w", i, err)
		}
		props := make(bson.D, 0, len(l.Fields))
		for _, fld := range l.Fields {
			props = append(props, bson.E{Key: fld.Name, Value: f.Get(fld.Name).Interface()})
		}
		docs = append(docs, bson.D{
			{Key: "type", Value: "Feature"},
			{Key: "geometry", Value: geometry},
			{Key: "properties", Value: props},
		})
	}
	if _, err := coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert into %s: %w", loc.Collection, err)
	}
	return nil
}
