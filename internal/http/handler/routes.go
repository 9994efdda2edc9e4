package handler

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"vendocs/internal/model"
	"vendocs/internal/service"
	"vendocs/internal/session"
)

// FavoritesStore persists each user's favorite document ids.
type FavoritesStore interface {
	Get(ctx context.Context, uid string) ([]string, error)
	Put(ctx context.Context, uid string, ids []string) error
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Keep handlers minimal: parse, delegate, translate errors.
func RegisterRoutes(app *fiber.App, db *sql.DB, docSvc service.DocumentService, favs FavoritesStore, profiles session.ProfileSource, docs session.DocumentSource) {
	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())

	app.Get("/documents", ListDocuments(docSvc))
	app.Get("/documents/fallback", ListDocumentsFallback(docSvc))
	app.Post("/documents", UploadDocument(docSvc))
	app.Get("/documents/:id/link", ResolveDocumentLink(docSvc))
	app.Get("/documents/:id/thumbnail", DocumentThumbnail(docSvc))
	app.Post("/documents/:id/open", OpenDocument(docSvc))
	app.Post("/documents/:id/share", ShareDocument(docSvc))

	app.Get("/users/:uid/favorites", GetFavorites(favs))
	app.Put("/users/:uid/favorites", PutFavorites(favs))

	app.Use("/ws/documents", RequireWebSocketUpgrade())
	app.Get("/ws/documents", WatchDocuments(profiles, docs))
}

// HealthCheck verifies DB connectivity.
//
// @Summary Health check
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} errorPayload
// @Router /health [get]
func HealthCheck(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe is a plain liveness endpoint with no dependency checks.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

var errInvalidLimit = errors.New("invalid limit")

// listQueryFrom parses the shared list parameters. The level query value is
// passed through raw: coercion and clamping happen in the service so
// malformed values degrade to the floor instead of erroring.
func listQueryFrom(c *fiber.Ctx) (service.ListQuery, error) {
	limitStr := c.Query("limit", "100")
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit < 0 {
		return service.ListQuery{}, errInvalidLimit
	}

	var rawLevel any
	if lv := c.Query("level"); lv != "" {
		rawLevel = lv
	}

	// X-User-ID wins over the uid query param; the auth protocol itself is
	// out of scope, the id is an opaque profile key.
	uid := c.Get("X-User-ID")
	if uid == "" {
		uid = c.Query("uid")
	}

	return service.ListQuery{
		UID:      uid,
		RawLevel: rawLevel,
		Category: c.Query("category"),
		Search:   c.Query("q"),
		Limit:    limit,
	}, nil
}

// ListDocuments returns the entitled document set, narrowed by category and
// search terms.
//
// @Summary List entitled documents
// @Produce json
// @Param uid query string false "identity whose profile level gates the set"
// @Param level query int false "explicit level when unauthenticated (clamped 0..3)"
// @Param category query string false "category filter"
// @Param q query string false "search terms (AND over title, category, tags)"
// @Param limit query int false "maximum result size"
// @Success 200 {array} model.Document
// @Failure 403 {object} errorPayload
// @Router /documents [get]
func ListDocuments(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q, err := listQueryFrom(c)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		res, svcErr := svc.List(c.UserContext(), q)
		if svcErr != nil {
			return writeServiceError(c, svcErr)
		}
		return c.JSON(res)
	}
}

// ListDocumentsFallback serves the same logical set through the unindexed
// path. Meant for degraded operation; results may lag the live set.
//
// @Summary List documents (fallback path)
// @Produce json
// @Success 200 {array} model.Document
// @Router /documents/fallback [get]
func ListDocumentsFallback(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q, err := listQueryFrom(c)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		res, svcErr := svc.ListFallback(c.UserContext(), q)
		if svcErr != nil {
			return writeServiceError(c, svcErr)
		}
		return c.JSON(res)
	}
}

// ResolveDocumentLink resolves a document's openable URL.
//
// @Summary Resolve document link
// @Produce json
// @Param id path string true "document id"
// @Success 200 {object} map[string]string
// @Failure 404 {object} errorPayload
// @Failure 503 {object} errorPayload
// @Router /documents/{id}/link [get]
func ResolveDocumentLink(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		url, err := svc.ResolveLink(c.UserContext(), c.Params("id"))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(fiber.Map{"url": url})
	}
}

// DocumentThumbnail returns the preview URL (placeholder when the record has
// no directly-usable thumbnail).
func DocumentThumbnail(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		url, err := svc.Thumbnail(c.UserContext(), c.Params("id"))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(fiber.Map{"url": url})
	}
}

// OpenDocument resolves a document and probes that its URL is reachable.
//
// @Summary Open document
// @Produce json
// @Param id path string true "document id"
// @Success 200 {object} map[string]string
// @Failure 422 {object} errorPayload
// @Router /documents/{id}/open [post]
func OpenDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		url, err := svc.Open(c.UserContext(), c.Params("id"))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(fiber.Map{"url": url})
	}
}

// ShareDocument stages the document content and hands it to the share
// surface. At most one share per document runs at a time.
//
// @Summary Share document
// @Produce json
// @Param id path string true "document id"
// @Success 200 {object} share.Result
// @Failure 409 {object} errorPayload
// @Failure 502 {object} errorPayload
// @Router /documents/{id}/share [post]
func ShareDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		res, err := svc.Share(c.UserContext(), c.Params("id"))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	}
}

// UploadDocument stores a new document (multipart/form-data, field name:
// file; metadata fields: title, category, min_level, tags).
//
// @Summary Upload document
// @Accept multipart/form-data
// @Produce json
// @Success 201 {object} model.Document
// @Failure 400 {object} errorPayload
// @Router /documents [post]
func UploadDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		ct := fh.Header.Get("Content-Type")
		if ct == "" {
			ct = "application/octet-stream"
		}

		minLevel := 0
		if v := c.FormValue("min_level"); v != "" {
			minLevel, err = strconv.Atoi(v)
			if err != nil {
				return writeError(c, fiber.StatusBadRequest, "INVALID_LEVEL", "invalid min_level")
			}
		}

		meta := service.UploadMeta{
			Title:    c.FormValue("title", fh.Filename),
			Category: c.FormValue("category"),
			MinLevel: minLevel,
			Tags:     model.SplitTags(c.FormValue("tags")),
		}

		doc, err := svc.Upload(c.UserContext(), f, fh.Filename, ct, fh.Size, meta)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(doc)
	}
}

// GetFavorites returns the user's favorite document ids.
func GetFavorites(favs FavoritesStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ids, err := favs.Get(c.UserContext(), c.Params("uid"))
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(fiber.Map{"ids": ids})
	}
}

// PutFavorites replaces the user's favorites list.
func PutFavorites(favs FavoritesStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body struct {
			IDs []string `json:"ids"`
		}
		if err := c.BodyParser(&body); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid body")
		}
		if err := favs.Put(c.UserContext(), c.Params("uid"), body.IDs); err != nil {
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
