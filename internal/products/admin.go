package products

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/finmate/finmate/common/errors"
	"github.com/finmate/finmate/internal/database"
	"github.com/finmate/finmate/pkg/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AdminStore is the catalog maintenance surface used by staff
type AdminStore interface {
	AdminSearchFinancialProducts(ctx context.Context, q, category string) ([]ProductView, error)
	CreateFinancialProduct(ctx context.Context, req *models.FinancialProductRequest) (*ProductView, error)
	UpdateFinancialProduct(ctx context.Context, code string, req *models.FinancialProductRequest) (*ProductView, error)
	DeleteFinancialProduct(ctx context.Context, code string) error

	AdminListDeposits(ctx context.Context) ([]DepositView, error)
	CreateDeposit(ctx context.Context, req *models.DepositProductRequest) (*DepositView, error)
	UpdateDeposit(ctx context.Context, code string, req *models.DepositProductRequest) (*DepositView, error)
	DeleteDeposit(ctx context.Context, code string) error

	AdminListSavings(ctx context.Context) ([]SavingView, error)
	CreateSaving(ctx context.Context, req *models.SavingProductRequest) (*SavingView, error)
	UpdateSaving(ctx context.Context, code string, req *models.SavingProductRequest) (*SavingView, error)
	DeleteSaving(ctx context.Context, code string) error

	AdminListLoans(ctx context.Context) ([]LoanView, error)
	CreateLoan(ctx context.Context, req *models.LoanProductRequest) (*LoanView, error)
	UpdateLoan(ctx context.Context, code string, req *models.LoanProductRequest) (*LoanView, error)
	DeleteLoan(ctx context.Context, code string) error
}

// AdminSearchFinancialProducts matches q against name or company and
// optionally restricts to a category.
func (s *Service) AdminSearchFinancialProducts(ctx context.Context, q, category string) ([]ProductView, error) {
	return s.ListFinancialProducts(ctx, CatalogQuery{Category: category, Search: strings.TrimSpace(q)})
}

// CreateFinancialProduct inserts a new catalog header
func (s *Service) CreateFinancialProduct(ctx context.Context, req *models.FinancialProductRequest) (*ProductView, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.FinancialProduct{}).Where("fin_prdt_cd = ?", req.FinPrdtCd).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check product: %w", err)
	}
	if count > 0 {
		return nil, apperrors.NewField(apperrors.ErrConflict, "fin_prdt_cd", "financial product with this fin prdt cd already exists.")
	}

	p := &models.FinancialProduct{FinPrdtCd: req.FinPrdtCd}
	applyProductRequest(p, req)
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperrors.NewField(apperrors.ErrConflict, "fin_prdt_cd", "financial product with this fin prdt cd already exists.")
		}
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	s.logger.Info("Financial product created", zap.String("product", p.FinPrdtCd))
	view := productView(p)
	return &view, nil
}

// UpdateFinancialProduct replaces the editable fields of a product. The code
// itself cannot change.
func (s *Service) UpdateFinancialProduct(ctx context.Context, code string, req *models.FinancialProductRequest) (*ProductView, error) {
	p, err := s.findProduct(ctx, code)
	if err != nil {
		return nil, err
	}
	if req.FinPrdtCd != "" && req.FinPrdtCd != code {
		return nil, apperrors.NewField(apperrors.ErrInvalid, "fin_prdt_cd", "product code cannot be changed")
	}
	applyProductRequest(p, req)
	if err := s.db.WithContext(ctx).Save(p).Error; err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	view := productView(p)
	return &view, nil
}

// DeleteFinancialProduct removes a product together with every row that
// references it.
func (s *Service) DeleteFinancialProduct(ctx context.Context, code string) error {
	if _, err := s.findProduct(ctx, code); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{
			&models.UserProduct{},
			&models.RequirementOption{},
			&models.DepositJoinWay{},
			&models.LoanJoinWay{},
			&models.MortgageLoanOption{},
			&models.CreditLoanOption{},
			&models.LendingRateOption{},
			&models.DepositProduct{},
			&models.SavingProduct{},
			&models.LoanProduct{},
		} {
			if err := tx.Where("product_id = ?", code).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Where("fin_prdt_cd = ?", code).Delete(&models.FinancialProduct{}).Error
	})
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	s.logger.Info("Financial product deleted", zap.String("product", code))
	return nil
}

// AdminListDeposits lists every deposit
func (s *Service) AdminListDeposits(ctx context.Context) ([]DepositView, error) {
	return s.ListDeposits(ctx, RateQuery{})
}

// CreateDeposit attaches deposit details to an existing product
func (s *Service) CreateDeposit(ctx context.Context, req *models.DepositProductRequest) (*DepositView, error) {
	product, err := s.detailTarget(ctx, &models.DepositProduct{}, req.Product)
	if err != nil {
		return nil, err
	}
	d := &models.DepositProduct{ProductCode: product.FinPrdtCd}
	applyDepositRequest(d, req)
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(d).Error; err != nil {
		return nil, fmt.Errorf("failed to create deposit: %w", err)
	}
	d.Product = *product
	return &DepositView{DepositProduct: *d, FinancialProduct: productView(product)}, nil
}

// UpdateDeposit replaces the deposit details of a product
func (s *Service) UpdateDeposit(ctx context.Context, code string, req *models.DepositProductRequest) (*DepositView, error) {
	var d models.DepositProduct
	if err := s.db.WithContext(ctx).Preload("Product").Where("product_id = ?", code).First(&d).Error; err != nil {
		return nil, notFound(err, "Deposit product not found")
	}
	applyDepositRequest(&d, req)
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Save(&d).Error; err != nil {
		return nil, fmt.Errorf("failed to update deposit: %w", err)
	}
	return &DepositView{DepositProduct: d, FinancialProduct: productView(&d.Product)}, nil
}

// DeleteDeposit removes the deposit details of a product
func (s *Service) DeleteDeposit(ctx context.Context, code string) error {
	return s.deleteDetail(ctx, &models.DepositProduct{}, code, "Deposit product not found")
}

// AdminListSavings lists every saving
func (s *Service) AdminListSavings(ctx context.Context) ([]SavingView, error) {
	return s.ListSavings(ctx, RateQuery{})
}

// CreateSaving attaches saving details to an existing product
func (s *Service) CreateSaving(ctx context.Context, req *models.SavingProductRequest) (*SavingView, error) {
	product, err := s.detailTarget(ctx, &models.SavingProduct{}, req.Product)
	if err != nil {
		return nil, err
	}
	sp := &models.SavingProduct{ProductCode: product.FinPrdtCd}
	applySavingRequest(sp, req)
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(sp).Error; err != nil {
		return nil, fmt.Errorf("failed to create saving: %w", err)
	}
	sp.Product = *product
	return &SavingView{SavingProduct: *sp, FinancialProduct: productView(product)}, nil
}

// UpdateSaving replaces the saving details of a product
func (s *Service) UpdateSaving(ctx context.Context, code string, req *models.SavingProductRequest) (*SavingView, error) {
	var sp models.SavingProduct
	if err := s.db.WithContext(ctx).Preload("Product").Where("product_id = ?", code).First(&sp).Error; err != nil {
		return nil, notFound(err, "Saving product not found")
	}
	applySavingRequest(&sp, req)
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Save(&sp).Error; err != nil {
		return nil, fmt.Errorf("failed to update saving: %w", err)
	}
	return &SavingView{SavingProduct: sp, FinancialProduct: productView(&sp.Product)}, nil
}

// DeleteSaving removes the saving details of a product
func (s *Service) DeleteSaving(ctx context.Context, code string) error {
	return s.deleteDetail(ctx, &models.SavingProduct{}, code, "Saving product not found")
}

// AdminListLoans lists every loan in the flat shape
func (s *Service) AdminListLoans(ctx context.Context) ([]LoanView, error) {
	var list []models.LoanProduct
	err := s.db.WithContext(ctx).
		Model(&models.LoanProduct{}).
		Select("loan_products.*").
		Joins("JOIN financial_products fp ON fp.fin_prdt_cd = loan_products.product_id").
		Preload("Product").
		Order("fp.kor_co_nm ASC").
		Order("loan_products.product_id ASC").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	return loanViews(list), nil
}

// CreateLoan attaches loan details to an existing product
func (s *Service) CreateLoan(ctx context.Context, req *models.LoanProductRequest) (*LoanView, error) {
	product, err := s.detailTarget(ctx, &models.LoanProduct{}, req.Product)
	if err != nil {
		return nil, err
	}
	l := &models.LoanProduct{ProductCode: product.FinPrdtCd}
	applyLoanRequest(l, req)
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(l).Error; err != nil {
		return nil, fmt.Errorf("failed to create loan: %w", err)
	}
	l.Product = *product
	return &LoanView{LoanProduct: *l, FinancialProduct: productView(product)}, nil
}

// UpdateLoan replaces the loan details of a product
func (s *Service) UpdateLoan(ctx context.Context, code string, req *models.LoanProductRequest) (*LoanView, error) {
	var l models.LoanProduct
	if err := s.db.WithContext(ctx).Preload("Product").Where("product_id = ?", code).First(&l).Error; err != nil {
		return nil, notFound(err, "Loan product not found")
	}
	applyLoanRequest(&l, req)
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Save(&l).Error; err != nil {
		return nil, fmt.Errorf("failed to update loan: %w", err)
	}
	return &LoanView{LoanProduct: l, FinancialProduct: productView(&l.Product)}, nil
}

// DeleteLoan removes the loan details of a product along with its options
func (s *Service) DeleteLoan(ctx context.Context, code string) error {
	return s.deleteDetail(ctx, &models.LoanProduct{}, code, "Loan product not found")
}

// detailTarget resolves the product a new detail row points at. The product
// must exist and must not already carry a row of the same kind.
func (s *Service) detailTarget(ctx context.Context, model interface{}, code string) (*models.FinancialProduct, error) {
	var p models.FinancialProduct
	if err := s.db.WithContext(ctx).Where("fin_prdt_cd = ?", code).First(&p).Error; err != nil {
		if apperrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewField(apperrors.ErrInvalid, "product", fmt.Sprintf("Invalid pk %q - object does not exist.", code))
		}
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(model).Where("product_id = ?", code).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check details: %w", err)
	}
	if count > 0 {
		return nil, apperrors.NewField(apperrors.ErrConflict, "product", "details for this product already exist.")
	}
	return &p, nil
}

func (s *Service) deleteDetail(ctx context.Context, model interface{}, code, missing string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("product_id = ?", code).Delete(model)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.New(apperrors.ErrNotFound, missing)
		}
		if _, ok := model.(*models.LoanProduct); ok {
			for _, option := range []interface{}{&models.MortgageLoanOption{}, &models.CreditLoanOption{}, &models.LendingRateOption{}} {
				if err := tx.Where("product_id = ?", code).Delete(option).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete details: %w", err)
	}
	return nil
}

func applyProductRequest(p *models.FinancialProduct, req *models.FinancialProductRequest) {
	p.KorCoNm = strings.TrimSpace(req.KorCoNm)
	p.FinPrdtNm = strings.TrimSpace(req.FinPrdtNm)
	p.JoinWay = req.JoinWay
	p.LoanType = req.LoanType
	p.JoinMember = req.JoinMember
}

func applyDepositRequest(d *models.DepositProduct, req *models.DepositProductRequest) {
	d.FinCoNo = req.FinCoNo
	d.DclsMonth = req.DclsMonth
	d.Category = req.Category
	if d.Category == "" {
		d.Category = models.CategoryDeposit
	}
	d.IntrRateType = req.IntrRateType
	d.SaveTrm = req.SaveTrm
	d.IntrRate = req.IntrRate
	d.IntrRate2 = req.IntrRate2
}

func applySavingRequest(sp *models.SavingProduct, req *models.SavingProductRequest) {
	sp.FinCoNo = req.FinCoNo
	sp.DclsMonth = req.DclsMonth
	sp.Category = req.Category
	if sp.Category == "" {
		sp.Category = models.CategorySaving
	}
	sp.IntrRateType = req.IntrRateType
	sp.RsrvType = req.RsrvType
	sp.SaveTrm = req.SaveTrm
	sp.IntrRate = req.IntrRate
	sp.IntrRate2 = req.IntrRate2
}

func applyLoanRequest(l *models.LoanProduct, req *models.LoanProductRequest) {
	l.FinCoNo = req.FinCoNo
	l.DclsMonth = req.DclsMonth
	l.LoanInciExpn = req.LoanInciExpn
	l.ErlyRpayFee = req.ErlyRpayFee
	l.DlyRate = req.DlyRate
	l.LoanLmt = req.LoanLmt
}
