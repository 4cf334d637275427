package cfg

import (
	"chansync/internal/blocking"
	"chansync/internal/database"
	"chansync/internal/domain/consts"
	"chansync/internal/domain/keys"
	"chansync/internal/history"
	"chansync/internal/server"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// serveCmd serves a local output tree and the status API.
func serveCmd() (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Serve downloaded audio and sync status over HTTP",
		Args:    cobra.NoArgs,
		PreRunE: bindLocal,
		RunE: func(cmd *cobra.Command, _ []string) error {
			root, err := localRoot(viper.GetString(keys.Output))
			if err != nil {
				return err
			}
			dbPath, err := pathOr(keys.StateDB, consts.StateDBName)
			if err != nil {
				return err
			}
			db, err := database.Open(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()

			blocker := blocking.New(db.DB)
			if err := blocker.Load(cmd.Context()); err != nil {
				return err
			}

			h := server.NewRouter(root, history.NewStore(db.DB), blocker)
			return server.StartServer(cmd.Context(), ":"+viper.GetString(keys.Port), h)
		},
	}

	cmd.Flags().String(keys.Output, ".", "Local output root to serve")
	return cmd, nil
}
