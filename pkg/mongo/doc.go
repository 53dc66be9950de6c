// Package mongo connects to MongoDB with the official v2 driver.
//
// New retries the connection and ping according to Config; NewWithDatabase
// returns a handle on a single database. notifyd uses it for
// deadletter.MongoStorage when MONGODB_URL is set.
//
//	db, err := mongo.NewWithDatabase(ctx, cfg, cfg.Database)
//	if err != nil {
//		return err
//	}
//	defer db.Client().Disconnect(context.WithoutCancel(ctx))
//
// Connection failures are joined with ErrConnect.
package mongo
