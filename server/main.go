package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"shareroom/db"
	"shareroom/uploads"
)

func keyFunc(c *gin.Context) string {
	return c.ClientIP()
}

func rateLimitErrorHandler(c *gin.Context, info ratelimit.Info) {
	c.String(429, "Too many requests. Try again in "+time.Until(info.ResetTime).String())
}

func newUploadTokenSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		log.Fatal("Error generating upload token secret:", err)
	}
	return base64.StdEncoding.EncodeToString(b)
}

func setupRouter(staticDir string) *gin.Engine {
	r := gin.Default()

	store := ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{Rate: time.Second, Limit: 100})
	r.Use(ratelimit.RateLimiter(store, &ratelimit.Options{ErrorHandler: rateLimitErrorHandler, KeyFunc: keyFunc}))
	r.Use(cors.Default())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/ws", HandleSocket)

	r.POST("/upload", HandleUpload)
	r.GET("/uploads/:name", HandleServeUpload)

	r.GET("/", func(c *gin.Context) {
		c.File(filepath.Join(staticDir, "index.html"))
	})
	r.Static("/public", staticDir)

	return r
}

func main() {
	_ = godotenv.Load()

	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}
	dbName := os.Getenv("DB_FILE")
	if dbName == "" {
		dbName = "./shareroom.db"
	}
	uploadDir := os.Getenv("UPLOAD_DIR")
	if uploadDir == "" {
		uploadDir = "./uploads"
	}
	staticDir := os.Getenv("STATIC_DIR")
	if staticDir == "" {
		staticDir = "./public"
	}
	uploadTokenSecret = os.Getenv("UPLOAD_TOKEN_SECRET")
	if uploadTokenSecret == "" {
		// Grants only need to outlive the rooms they belong to, and
		// rooms die with the process.
		uploadTokenSecret = newUploadTokenSecret()
	}

	var err error
	db.DB, err = db.InitSQLite(dbName)
	if err != nil {
		log.Fatal("Error opening database:", err)
	}
	defer db.CloseDB(db.DB)

	UploadStore, err = uploads.NewStore(uploadDir, db.DB)
	if err != nil {
		log.Fatal("Error initializing upload store:", err)
	}
	if removed, err := UploadStore.Sweep(); err != nil {
		log.Println("Upload sweep failed:", err)
	} else if removed > 0 {
		log.Printf("Swept %d stale uploads from previous run", removed)
	}

	server := &http.Server{Addr: ":" + port, Handler: setupRouter(staticDir)}

	go func() {
		log.Printf("Starting shareroom on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down shareroom...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("shareroom forced shutdown: %v", err)
	}
}
