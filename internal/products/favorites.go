package products

import (
	"context"
	"errors"
	"fmt"
	"sort"

	apperrors "github.com/finmate/finmate/common/errors"
	"github.com/finmate/finmate/internal/database"
	"github.com/finmate/finmate/pkg/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RecommendationResult is returned by Recommendations
type RecommendationResult struct {
	Message              string                 `json:"message"`
	FavoriteInstitutions []string               `json:"favorite_institutions,omitempty"`
	Recommendations      map[string]interface{} `json:"recommendations"`
}

// ListFavorites returns the user's favorites with their detail rows
func (s *Service) ListFavorites(ctx context.Context, userID uint) ([]FavoriteView, error) {
	var favorites []models.UserProduct
	err := s.db.WithContext(ctx).
		Preload("Product").
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&favorites).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}

	out := make([]FavoriteView, 0, len(favorites))
	for i := range favorites {
		view, err := s.favoriteView(ctx, &favorites[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *view)
	}
	return out, nil
}

// AddFavorite marks a product as a favorite of the user
func (s *Service) AddFavorite(ctx context.Context, userID uint, code string) (*FavoriteView, error) {
	product, err := s.findProduct(ctx, code)
	if err != nil {
		return nil, err
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.UserProduct{}).Where("user_id = ? AND product_id = ?", userID, code).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check favorite: %w", err)
	}
	if count > 0 {
		return nil, apperrors.New(apperrors.ErrConflict, "이미 관심 상품으로 등록되어 있습니다.")
	}

	favorite := &models.UserProduct{UserID: userID, ProductCode: product.FinPrdtCd}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(favorite).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperrors.New(apperrors.ErrConflict, "이미 관심 상품으로 등록되어 있습니다.")
		}
		return nil, fmt.Errorf("failed to add favorite: %w", err)
	}
	favorite.Product = *product

	s.logger.Info("Favorite added", zap.Uint("user_id", userID), zap.String("product", code))
	return s.favoriteView(ctx, favorite)
}

// RemoveFavorite removes a product from the user's favorites
func (s *Service) RemoveFavorite(ctx context.Context, userID uint, code string) error {
	if _, err := s.findProduct(ctx, code); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Where("user_id = ? AND product_id = ?", userID, code).Delete(&models.UserProduct{})
	if res.Error != nil {
		return fmt.Errorf("failed to remove favorite: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.New(apperrors.ErrNotFound, "관심 상품 목록에서 찾을 수 없습니다.")
	}
	return nil
}

func (s *Service) favoriteView(ctx context.Context, f *models.UserProduct) (*FavoriteView, error) {
	view := &FavoriteView{
		ID:               f.ID,
		User:             f.UserID,
		Product:          f.ProductCode,
		CreatedAt:        f.CreatedAt,
		FinancialProduct: productView(&f.Product),
	}
	db := s.db.WithContext(ctx)

	var deposit models.DepositProduct
	if err := db.Where("product_id = ?", f.ProductCode).First(&deposit).Error; err == nil {
		deposit.Product = f.Product
		view.DepositInfo = &DepositView{DepositProduct: deposit, FinancialProduct: view.FinancialProduct}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load deposit info: %w", err)
	}

	var saving models.SavingProduct
	if err := db.Where("product_id = ?", f.ProductCode).First(&saving).Error; err == nil {
		saving.Product = f.Product
		view.SavingInfo = &SavingView{SavingProduct: saving, FinancialProduct: view.FinancialProduct}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load saving info: %w", err)
	}

	var loan models.LoanProduct
	if err := db.Where("product_id = ?", f.ProductCode).First(&loan).Error; err == nil {
		loan.Product = f.Product
		details, err := s.loanDetails(ctx, []models.LoanProduct{loan})
		if err != nil {
			return nil, err
		}
		view.LoanInfo = &details[0]
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load loan info: %w", err)
	}

	return view, nil
}

// Recommendations suggests products based on the user's favorites: the best
// products of favorite institutions plus a few from elsewhere, for every kind
// the user has favorited. Without favorites it falls back to top rates.
func (s *Service) Recommendations(ctx context.Context, user *models.User) (*RecommendationResult, error) {
	db := s.db.WithContext(ctx)

	var favorites []models.UserProduct
	if err := db.Preload("Product").Where("user_id = ?", user.ID).Find(&favorites).Error; err != nil {
		return nil, fmt.Errorf("failed to load favorites: %w", err)
	}

	if len(favorites) == 0 {
		var deposits []models.DepositProduct
		if err := db.Preload("Product").Order("intr_rate2 DESC").Order("product_id ASC").Limit(3).Find(&deposits).Error; err != nil {
			return nil, fmt.Errorf("failed to load deposits: %w", err)
		}
		var savings []models.SavingProduct
		if err := db.Preload("Product").Order("intr_rate2 DESC").Order("product_id ASC").Limit(3).Find(&savings).Error; err != nil {
			return nil, fmt.Errorf("failed to load savings: %w", err)
		}
		loans, err := s.recommendLoans(ctx, nil, false, 3)
		if err != nil {
			return nil, err
		}
		return &RecommendationResult{
			Message: "추천 상품입니다. 관심 상품을 추가하면 더 정확한 추천을 받을 수 있습니다.",
			Recommendations: map[string]interface{}{
				"deposits": depositViews(deposits),
				"savings":  savingViews(savings),
				"loans":    loans,
			},
		}, nil
	}

	seen := make(map[string]bool)
	institutions := make([]string, 0)
	codes := make([]string, 0, len(favorites))
	for _, f := range favorites {
		codes = append(codes, f.ProductCode)
		if !seen[f.Product.KorCoNm] {
			seen[f.Product.KorCoNm] = true
			institutions = append(institutions, f.Product.KorCoNm)
		}
	}
	sort.Strings(institutions)

	interested := func(model interface{}) (bool, error) {
		var n int64
		err := db.Model(model).Where("product_id IN ?", codes).Count(&n).Error
		return n > 0, err
	}

	recommendations := make(map[string]interface{})

	if ok, err := interested(&models.DepositProduct{}); err != nil {
		return nil, fmt.Errorf("failed to inspect favorites: %w", err)
	} else if ok {
		var fromFavorites, others []models.DepositProduct
		if err := s.byInstitution(ctx, &fromFavorites, "deposit_products", institutions, true, 3); err != nil {
			return nil, err
		}
		if err := s.byInstitution(ctx, &others, "deposit_products", institutions, false, 2); err != nil {
			return nil, err
		}
		recommendations["deposits"] = depositViews(append(fromFavorites, others...))
	}

	if ok, err := interested(&models.SavingProduct{}); err != nil {
		return nil, fmt.Errorf("failed to inspect favorites: %w", err)
	} else if ok {
		var fromFavorites, others []models.SavingProduct
		if err := s.byInstitution(ctx, &fromFavorites, "saving_products", institutions, true, 3); err != nil {
			return nil, err
		}
		if err := s.byInstitution(ctx, &others, "saving_products", institutions, false, 2); err != nil {
			return nil, err
		}
		recommendations["savings"] = savingViews(append(fromFavorites, others...))
	}

	if ok, err := interested(&models.LoanProduct{}); err != nil {
		return nil, fmt.Errorf("failed to inspect favorites: %w", err)
	} else if ok {
		fromFavorites, err := s.recommendLoans(ctx, institutions, true, 3)
		if err != nil {
			return nil, err
		}
		others, err := s.recommendLoans(ctx, institutions, false, 2)
		if err != nil {
			return nil, err
		}
		recommendations["loans"] = append(fromFavorites, others...)
	}

	return &RecommendationResult{
		Message:              fmt.Sprintf("%s님의 관심 금융 상품 기반 맞춤 추천입니다.", user.Username),
		FavoriteInstitutions: institutions,
		Recommendations:      recommendations,
	}, nil
}

// byInstitution loads the highest rate rows of table whose company is (or is
// not) one of institutions.
func (s *Service) byInstitution(ctx context.Context, dst interface{}, table string, institutions []string, include bool, limit int) error {
	query := s.db.WithContext(ctx).
		Model(rateModel(table)).
		Select(table + ".*").
		Joins("JOIN financial_products fp ON fp.fin_prdt_cd = " + table + ".product_id").
		Preload("Product")
	if include {
		query = query.Where("fp.kor_co_nm IN ?", institutions)
	} else {
		query = query.Where("fp.kor_co_nm NOT IN ?", institutions)
	}
	err := query.Order(table + ".intr_rate2 DESC").Order(table + ".product_id ASC").Limit(limit).Find(dst).Error
	if err != nil {
		return fmt.Errorf("failed to load %s recommendations: %w", table, err)
	}
	return nil
}

func (s *Service) recommendLoans(ctx context.Context, institutions []string, include bool, limit int) ([]LoanDetailView, error) {
	query := s.db.WithContext(ctx).
		Model(&models.LoanProduct{}).
		Select("loan_products.*").
		Joins("JOIN financial_products fp ON fp.fin_prdt_cd = loan_products.product_id").
		Preload("Product")
	if len(institutions) > 0 {
		if include {
			query = query.Where("fp.kor_co_nm IN ?", institutions)
		} else {
			query = query.Where("fp.kor_co_nm NOT IN ?", institutions)
		}
	}
	var loans []models.LoanProduct
	if err := query.Order("fp.kor_co_nm ASC").Order("loan_products.product_id ASC").Limit(limit).Find(&loans).Error; err != nil {
		return nil, fmt.Errorf("failed to load loan recommendations: %w", err)
	}
	return s.loanDetails(ctx, loans)
}
