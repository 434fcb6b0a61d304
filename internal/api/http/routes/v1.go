package routes

import (
	traffichttp "github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/http"
	"github.com/gin-gonic/gin"
)

type V1Deps struct {
	Traffic *traffichttp.Handler
}

func RegisterV1(r *gin.Engine, dep V1Deps) {
	api := r.Group("/api/v1")

	if dep.Traffic != nil {
		dep.Traffic.Register(api)
	}
}
