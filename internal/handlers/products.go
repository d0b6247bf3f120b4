package handlers

import (
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/maxturbaman/GREENDELIVERY/internal/models"
	"github.com/maxturbaman/GREENDELIVERY/internal/storage"
	"github.com/maxturbaman/GREENDELIVERY/pkg/logger"
	"github.com/maxturbaman/GREENDELIVERY/pkg/utils"
	"gorm.io/gorm"
)

type ProductsHandler struct {
	DB      *gorm.DB
	Storage *storage.MinIOClient
}

func NewProductsHandler(db *gorm.DB, storageClient *storage.MinIOClient) *ProductsHandler {
	return &ProductsHandler{DB: db, Storage: storageClient}
}

func (h *ProductsHandler) List(c *fiber.Ctx) error {
	var products []models.Product
	if err := h.DB.
		Preload("Images", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_index ASC, id ASC")
		}).
		Order("created_at DESC").
		Find(&products).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing products")
	}

	return utils.Success(c, fiber.StatusOK, products)
}

type productRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Active      *bool   `json:"active"`
}

func (h *ProductsHandler) Create(c *fiber.Ctx) error {
	var req productRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	if req.Name == "" || req.Price < 0 {
		return utils.Error(c, fiber.StatusBadRequest, "invalid product data")
	}

	product := models.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Active:      true,
	}
	if req.Active != nil {
		product.Active = *req.Active
	}

	if err := h.DB.Create(&product).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating product")
	}

	logger.Info("product_created", map[string]interface{}{
		"product_id": product.ID,
		"name":       product.Name,
	})

	return utils.Success(c, fiber.StatusCreated, product)
}

func (h *ProductsHandler) Update(c *fiber.Ctx) error {
	product, resp := h.findProduct(c)
	if product == nil {
		return resp
	}

	var req productRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	if req.Name == "" || req.Price < 0 {
		return utils.Error(c, fiber.StatusBadRequest, "invalid product data")
	}

	updates := map[string]interface{}{
		"name":        req.Name,
		"description": req.Description,
		"price":       req.Price,
	}
	if req.Active != nil {
		updates["active"] = *req.Active
	}

	if err := h.DB.Model(product).Updates(updates).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating product")
	}

	return utils.Success(c, fiber.StatusOK, product)
}

type productStatusRequest struct {
	Active *bool `json:"active"`
}

func (h *ProductsHandler) UpdateStatus(c *fiber.Ctx) error {
	product, resp := h.findProduct(c)
	if product == nil {
		return resp
	}

	var req productStatusRequest
	if err := c.BodyParser(&req); err != nil || req.Active == nil {
		return utils.Error(c, fiber.StatusBadRequest, "missing product id or active status")
	}

	if err := h.DB.Model(product).Update("active", *req.Active).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating product status")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"ok": true})
}

func (h *ProductsHandler) Delete(c *fiber.Ctx) error {
	product, resp := h.findProduct(c)
	if product == nil {
		return resp
	}

	if err := h.DB.Select("Images").Delete(product).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting product")
	}

	logger.Info("product_deleted", map[string]interface{}{
		"product_id": product.ID,
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"ok": true})
}

// UploadImages accepts a multipart form with one or more "images" files,
// stores each in the object store, and records the public URLs in order.
func (h *ProductsHandler) UploadImages(c *fiber.Ctx) error {
	product, resp := h.findProduct(c)
	if product == nil {
		return resp
	}

	if h.Storage == nil {
		return utils.Error(c, fiber.StatusServiceUnavailable, "image storage not configured")
	}

	form, err := c.MultipartForm()
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid multipart form")
	}

	files := form.File["images"]
	if len(files) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, "no images supplied")
	}

	var nextIndex int64
	h.DB.Model(&models.ProductImage{}).Where("product_id = ?", product.ID).Count(&nextIndex)

	created := make([]models.ProductImage, 0, len(files))
	for i, file := range files {
		imageURL, err := h.storeImage(c, product.ID, file)
		if err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed storing image")
		}

		image := models.ProductImage{
			ProductID:  product.ID,
			ImageURL:   imageURL,
			OrderIndex: int(nextIndex) + i + 1,
		}
		if err := h.DB.Create(&image).Error; err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed recording image")
		}
		created = append(created, image)
	}

	return utils.Success(c, fiber.StatusCreated, created)
}

func (h *ProductsHandler) storeImage(c *fiber.Ctx, productID uint, file *multipart.FileHeader) (string, error) {
	src, err := file.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	objectName := fmt.Sprintf("products/%d/%s%s", productID, uuid.New().String(), filepath.Ext(file.Filename))

	contentType := file.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := h.Storage.Upload(c.Context(), objectName, src, file.Size, contentType); err != nil {
		return "", err
	}

	return h.Storage.PublicURL(objectName), nil
}

func (h *ProductsHandler) findProduct(c *fiber.Ctx) (*models.Product, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil || id == 0 {
		return nil, utils.Error(c, fiber.StatusBadRequest, "missing product id")
	}

	var product models.Product
	if err := h.DB.First(&product, uint(id)).Error; err != nil {
		return nil, utils.Error(c, fiber.StatusNotFound, "product not found")
	}

	return &product, nil
}
