package app

import (
	"github.com/gin-gonic/gin"

	"github.com/botsman/psd2cert/app/dbrepository"
	"github.com/botsman/psd2cert/app/verify"
)

func SetupRouter(db dbrepository.TppRepository) *gin.Engine {
	r := gin.Default()
	r.Use(dbrepository.DbMiddleware(db))
	return r
}

func SetupTppVerifyRoutes(r *gin.Engine, h *verify.Handler) {
	tppRoute := r.Group("/tpp")
	tppRoute.POST("/verify", h.Verify)
}

func SetupCertRoutes(r *gin.Engine, h *verify.Handler) {
	certRoute := r.Group("/cert")
	certRoute.POST("/inspect", h.Inspect)
}
