//	@title			Gymnastics Gallery API
//	@version		1.0
//	@description	Photo gallery for gymnastics competitions: years, competitions, photo uploads and the public gallery views.
//
//	@host		localhost:8080
//	@BasePath	/api
//
//	@securityDefinitions.apikey	AdminCookie
//	@in							cookie
//	@name						acgallery_admin_token
//	@description				Session cookie set by POST /auth. A Bearer Authorization header is accepted as well.

package main

import (
	"os"

	"github.com/rs/zerolog/log"

	_ "github.com/acgallery/service/docs/swagger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
