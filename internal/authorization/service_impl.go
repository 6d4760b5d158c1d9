package authorization

import (
	"context"
	_ "embed"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	auditdomain "github.com/smallbiznis/schoolbill/internal/audit/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	AuditSvc auditdomain.Service `optional:"true"`
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	auditSvc auditdomain.Service
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		auditSvc: p.AuditSvc,
	}
}

func (s *ServiceImpl) Resolve(ctx context.Context, userID snowflake.ID, rawRole string) (Actor, error) {
	if userID == 0 {
		return Actor{}, ErrInvalidActor
	}
	role, err := ParseRole(rawRole)
	if err != nil {
		return Actor{}, err
	}

	actor := Actor{ID: userID, Role: role}
	if err := s.ensureGrouping(actor.subject(), roleSubject(role)); err != nil {
		return Actor{}, err
	}
	privileged, err := s.enforcer.Enforce(actor.subject(), ObjectDocument, ActionDocumentViewAll)
	if err != nil {
		return Actor{}, err
	}
	actor.Privileged = privileged
	return actor, nil
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor Actor, object string, action string) error {
	if actor.ID == 0 || actor.Role == "" {
		return ErrInvalidActor
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	if err := s.ensureGrouping(actor.subject(), roleSubject(actor.Role)); err != nil {
		return err
	}
	allowed, err := s.enforcer.Enforce(actor.subject(), object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.auditDenied(ctx, actor, object, action)
		return ErrForbidden
	}
	return nil
}

// ensureGrouping keeps exactly one role link per user; a user whose role
// changed upstream loses the old link.
func (s *ServiceImpl) ensureGrouping(subject string, roleName string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 || rule[1] == roleName {
			continue
		}
		params := make([]interface{}, 0, len(rule))
		for _, value := range rule {
			params = append(params, value)
		}
		if _, err := s.enforcer.RemoveGroupingPolicy(params...); err != nil {
			return err
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName)
	return err
}

func (s *ServiceImpl) auditDenied(ctx context.Context, actor Actor, object string, action string) {
	s.log.Info("authorization denied",
		zap.String("actor_id", actor.ID.String()),
		zap.String("role", string(actor.Role)),
		zap.String("object", object),
		zap.String("action", action),
	)
	if s.auditSvc == nil {
		return
	}
	targetID := object
	if err := s.auditSvc.AuditLog(ctx, "authorization.denied", "authorization", &targetID, map[string]any{
		"object":  object,
		"action":  action,
		"subject": actor.subject(),
	}); err != nil {
		s.log.Warn("failed to audit denied authorization", zap.Error(err))
	}
}

var (
	staffRoles   = []Role{RoleAdmin, RoleDirector, RoleAccountant, RoleTeacher}
	billingRoles = []Role{RoleAdmin, RoleDirector, RoleAccountant}
	seniorRoles  = []Role{RoleAdmin, RoleDirector}
)

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	var policies [][]string
	grant := func(roles []Role, object string, actions ...string) {
		for _, role := range roles {
			for _, action := range actions {
				policies = append(policies, []string{roleSubject(role), object, action})
			}
		}
	}

	grant(staffRoles, ObjectDocument, ActionDocumentViewAll, ActionDocumentUploadOnBehalf)
	grant(staffRoles, ObjectInvoice, ActionInvoiceView)
	grant(billingRoles, ObjectFeeType, ActionFeeTypeManage)
	grant(billingRoles, ObjectInvoice, ActionInvoiceManage)
	grant(billingRoles, ObjectPayment, ActionPaymentRecord, ActionPaymentReverse)
	grant(seniorRoles, ObjectInvoice, ActionInvoiceCancel)
	grant(seniorRoles, ObjectAuditLog, ActionAuditLogView)

	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy[0], policy[1], policy[2]); err != nil {
			return err
		}
	}
	return nil
}
