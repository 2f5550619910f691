package service

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"blgu-assess-go/internal/model"
	"blgu-assess-go/internal/repository"
)

var (
	ErrAreaCodeTaken   = errors.New("governance area code already exists")
	ErrAreaNotFound    = errors.New("governance area not found")
	ErrInvalidRole     = errors.New("unknown role")
	ErrInvalidAreaType = errors.New("area type must be core or essential")
)

// UserListResponse 定义了用户列表 API 的响应结构。
type UserListResponse struct {
	Content       []UserDetailResponse `json:"content"`
	TotalElements int64                `json:"totalElements"`
	TotalPages    int                  `json:"totalPages"`
	Size          int                  `json:"size"`
	Number        int                  `json:"number"`
}

// UserDetailResponse 定义了用户列表项的详细结构。
type UserDetailResponse struct {
	UserID         uint                  `json:"userId"`
	Username       string                `json:"username"`
	Role           string                `json:"role"`
	BarangayName   string                `json:"barangayName"`
	GovernanceArea *GovernanceAreaDetail `json:"governanceArea"`
	CreatedAt      model.LocalTime       `json:"createdAt"`
}

// GovernanceAreaDetail is the short form of an area embedded in user rows.
type GovernanceAreaDetail struct {
	ID   uint   `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// GovernanceAreaInput carries the editable fields of a governance area.
type GovernanceAreaInput struct {
	Code        string `json:"code" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	AreaType    string `json:"areaType"`
}

// AdminService 接口定义了所有管理员相关的业务操作。
type AdminService interface {
	CreateGovernanceArea(in GovernanceAreaInput, creator *model.User) (*model.GovernanceArea, error)
	ListGovernanceAreas() ([]model.GovernanceArea, error)
	UpdateGovernanceArea(id uint, in GovernanceAreaInput) (*model.GovernanceArea, error)
	DeleteGovernanceArea(id uint) error

	AssignRole(userID uint, role string, governanceAreaID *uint) error
	ListUsers(page, size int) (*UserListResponse, error)
}

type adminService struct {
	areaRepo repository.GovernanceAreaRepository
	userRepo repository.UserRepository
}

func NewAdminService(areaRepo repository.GovernanceAreaRepository, userRepo repository.UserRepository) AdminService {
	return &adminService{areaRepo: areaRepo, userRepo: userRepo}
}

func normalizeAreaType(t string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "", model.AreaCore:
		return model.AreaCore, nil
	case model.AreaEssential:
		return model.AreaEssential, nil
	}
	return "", ErrInvalidAreaType
}

func (s *adminService) CreateGovernanceArea(in GovernanceAreaInput, creator *model.User) (*model.GovernanceArea, error) {
	areaType, err := normalizeAreaType(in.AreaType)
	if err != nil {
		return nil, err
	}
	code := strings.ToUpper(strings.TrimSpace(in.Code))
	_, err = s.areaRepo.FindByCode(code)
	if err == nil {
		return nil, ErrAreaCodeTaken
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	area := &model.GovernanceArea{
		Code:        code,
		Name:        in.Name,
		Description: in.Description,
		AreaType:    areaType,
		CreatedBy:   creator.ID,
	}
	if err := s.areaRepo.Create(area); err != nil {
		return nil, err
	}
	return area, nil
}

func (s *adminService) ListGovernanceAreas() ([]model.GovernanceArea, error) {
	return s.areaRepo.FindAll()
}

func (s *adminService) UpdateGovernanceArea(id uint, in GovernanceAreaInput) (*model.GovernanceArea, error) {
	area, err := s.areaRepo.FindByID(id)
	if err != nil {
		return nil, ErrAreaNotFound
	}
	areaType, err := normalizeAreaType(in.AreaType)
	if err != nil {
		return nil, err
	}
	code := strings.ToUpper(strings.TrimSpace(in.Code))
	if code != area.Code {
		if other, err := s.areaRepo.FindByCode(code); err == nil && other.ID != id {
			return nil, ErrAreaCodeTaken
		}
	}
	area.Code = code
	area.Name = in.Name
	area.Description = in.Description
	area.AreaType = areaType
	if err := s.areaRepo.Update(area); err != nil {
		return nil, err
	}
	return area, nil
}

func (s *adminService) DeleteGovernanceArea(id uint) error {
	if _, err := s.areaRepo.FindByID(id); err != nil {
		return ErrAreaNotFound
	}
	return s.areaRepo.Delete(id)
}

// AssignRole sets a user's role and, for assessors and barangay users, the
// governance area they work on. A nil area clears the assignment.
func (s *adminService) AssignRole(userID uint, role string, governanceAreaID *uint) error {
	switch role {
	case model.RoleAdmin, model.RoleAssessor, model.RoleBLGU:
	default:
		return ErrInvalidRole
	}
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return err
	}
	if governanceAreaID != nil {
		if _, err := s.areaRepo.FindByID(*governanceAreaID); err != nil {
			return ErrAreaNotFound
		}
	}
	user.Role = role
	user.GovernanceAreaID = governanceAreaID
	return s.userRepo.Update(user)
}

// ListUsers 以分页的形式返回用户列表，page 从 1 开始。
func (s *adminService) ListUsers(page, size int) (*UserListResponse, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	users, total, err := s.userRepo.FindWithPagination((page-1)*size, size)
	if err != nil {
		return nil, err
	}

	areas := map[uint]*GovernanceAreaDetail{}
	content := make([]UserDetailResponse, 0, len(users))
	for _, u := range users {
		row := UserDetailResponse{
			UserID:       u.ID,
			Username:     u.Username,
			Role:         u.Role,
			BarangayName: u.BarangayName,
			CreatedAt:    model.LocalTime(u.CreatedAt),
		}
		if u.GovernanceAreaID != nil {
			id := *u.GovernanceAreaID
			detail, seen := areas[id]
			if !seen {
				if a, err := s.areaRepo.FindByID(id); err == nil {
					detail = &GovernanceAreaDetail{ID: a.ID, Code: a.Code, Name: a.Name}
				}
				areas[id] = detail
			}
			row.GovernanceArea = detail
		}
		content = append(content, row)
	}

	totalPages := 0
	if total > 0 {
		totalPages = (int(total) + size - 1) / size
	}
	return &UserListResponse{
		Content:       content,
		TotalElements: total,
		TotalPages:    totalPages,
		Size:          size,
		Number:        page,
	}, nil
}
