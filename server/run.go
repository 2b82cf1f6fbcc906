package main

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/botsman/psd2cert/app"
	"github.com/botsman/psd2cert/app/config"
	"github.com/botsman/psd2cert/app/dbrepository"
	"github.com/botsman/psd2cert/app/verify"
	"github.com/botsman/psd2cert/server/mongo"
	"github.com/botsman/psd2cert/server/sqlite"
)

func openRepository(ctx context.Context, conf config.StorageConfig) (dbrepository.TppRepository, func(), error) {
	switch conf.Backend {
	case config.BackendSqlite:
		repo, err := sqlite.NewSQLiteRepo(ctx, conf.Sqlite.Path)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() { repo.Close() }, nil
	default:
		client, err := mongo.GetMongoDb(ctx, conf.Mongo.URL, conf.Mongo.Database)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if err := client.Disconnect(context.Background()); err != nil {
				logrus.WithError(err).Error("failed to disconnect from mongo")
			}
		}
		return mongo.NewTppMongoRepository(client.Database), closeFn, nil
	}
}

func serve(configPath string) error {
	conf, err := config.Load(configPath)
	if err != nil {
		return err
	}
	level, _ := conf.Log.LogrusLevel()
	logrus.SetLevel(level)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	repo, closeRepo, err := openRepository(ctx, conf.Storage)
	cancel()
	if err != nil {
		logrus.WithError(err).WithField("backend", conf.Storage.Backend).Error("failed to open tpp repository")
		return err
	}
	defer closeRepo()

	h := verify.NewHandler(verify.Options{RequireEUQualified: conf.Psd2.RequireEUQualified})
	r := app.SetupRouter(repo)
	app.SetupTppVerifyRoutes(r, h)
	app.SetupCertRoutes(r, h)

	logrus.WithField("addr", conf.Server.Addr).Info("starting server")
	return r.Run(conf.Server.Addr)
}

func main() {
	var configPath string
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Serve the certificate inspection and TPP verification API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath)
		},
		SilenceUsage: true,
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to the YAML configuration")
	if err := cmd.Execute(); err != nil {
		logrus.WithError(err).Fatal("server stopped")
	}
}
