package bootstrap

import (
	"time"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	httpapi "github.com/shojbahmed330/appify-backend/internal/api/http"
	"github.com/shojbahmed330/appify-backend/internal/api/http/middleware"
	"github.com/shojbahmed330/appify-backend/internal/auth"
	forgegithub "github.com/shojbahmed330/appify-backend/internal/forge/github"
	forgehttp "github.com/shojbahmed330/appify-backend/internal/forge/http"
	forgerepo "github.com/shojbahmed330/appify-backend/internal/forge/repository"
	forgeservice "github.com/shojbahmed330/appify-backend/internal/forge/service"
	projhttp "github.com/shojbahmed330/appify-backend/internal/projects/http"
	projrepo "github.com/shojbahmed330/appify-backend/internal/projects/repository"
	projservice "github.com/shojbahmed330/appify-backend/internal/projects/service"
	"github.com/shojbahmed330/appify-backend/internal/studio"
	studiohttp "github.com/shojbahmed330/appify-backend/internal/studio/http"
	"github.com/shojbahmed330/appify-backend/internal/users"
	usershttp "github.com/shojbahmed330/appify-backend/internal/users/http"
)

type RouterDeps struct {
	ServiceName string
	Version     string
	CORSOrigins []string

	DB        *pgxpool.Pool
	Redis     *redis.Client
	Auth      *fbauth.Client // nil disables token verification (dev mode)
	Generator studio.Generator
}

// BuildResult carries the router plus the long-lived services main must
// close on shutdown.
type BuildResult struct {
	Engine *gin.Engine
	Builds *forgeservice.BuildService
}

func BuildRouter(dep RouterDeps) *BuildResult {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     dep.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-Id", "X-User-Id", "X-User-Email", "X-User-Name", "X-User-Photo"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	healthHandler := httpapi.NewHealthHandler(dep.ServiceName, dep.Version, dep.DB, dep.Redis)
	healthHandler.RegisterRoutes(r)

	userRepo := users.NewRepo(dep.DB)
	projects := projservice.New(projrepo.NewProjectRepo(dep.DB), projrepo.NewSnapshotRepo(dep.DB))

	github := forgegithub.NewClient()
	builds := forgeservice.New(github, forgerepo.NewRunRepository(dep.Redis), userRepo)

	studioManager, err := studio.NewManager(projects, dep.Generator, github, userRepo)
	if err != nil {
		// lru.New only fails on a non-positive size constant.
		panic(err)
	}

	api := r.Group("/api/v1")
	api.Use(auth.WithUser(dep.Auth, userRepo))

	projHandler := projhttp.NewHandler(projects)
	projHandler.Register(api.Group("/projects"))
	projHandler.RegisterSnapshots(api.Group("/snapshots"))

	studiohttp.NewHandler(studioManager).Register(api.Group("/studio"))
	forgehttp.NewHandler(builds, projects).Register(api.Group("/forge"))
	usershttp.NewHandler(userRepo).Register(api.Group("/me"))

	return &BuildResult{Engine: r, Builds: builds}
}
