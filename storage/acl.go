// Copyright 2023 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"context"
	"net/http"

	raw "google.golang.org/api/storage/v1"
)

// ACLRole is the level of access to grant.
type ACLRole string

const (
	// RoleOwner grants full control over the bucket or object.
	RoleOwner ACLRole = "OWNER"
	// RoleReader grants read access to the bucket or object.
	RoleReader ACLRole = "READER"
	// RoleWriter grants write access to the bucket.
	RoleWriter ACLRole = "WRITER"
)

// ACLEntity refers to a user or group.
// They are sometimes referred to as grantees.
//
// It could be in the form of:
// "user-<userId>", "user-<email>", "group-<groupId>", "group-<email>",
// "domain-<domain>" and "project-team-<projectId>".
//
// Or one of the predefined constants: AllUsers, AllAuthenticatedUsers.
type ACLEntity string

const (
	// AllUsers grants access to anyone on the internet.
	AllUsers ACLEntity = "allUsers"
	// AllAuthenticatedUsers grants access to anyone authenticated with a
	// Google account.
	AllAuthenticatedUsers ACLEntity = "allAuthenticatedUsers"
)

// ACLRule represents a grant for a role to an entity (user, group or team)
// for a Google Cloud Storage object or bucket.
type ACLRule struct {
	Entity      ACLEntity
	EntityID    string
	Role        ACLRole
	Domain      string
	Email       string
	ProjectTeam *ProjectTeam
}

// ProjectTeam is the project team associated with the entity, if any.
type ProjectTeam struct {
	ProjectNumber string
	Team          string
}

// ACLHandle provides operations on an access control list for a Google Cloud
// Storage bucket or object. ACLHandle on an object operates on the latest
// generation of that object by default.
type ACLHandle struct {
	c         *Client
	bucket    string
	object    string
	isDefault bool
	retry     *retryConfig
}

// Delete permanently deletes the ACL entry for the given entity.
func (a *ACLHandle) Delete(ctx context.Context, entity ACLEntity) (err error) {
	ctx = startSpan(ctx, "ACL.Delete")
	defer func() { endSpan(ctx, err) }()

	u := a.url(string(entity))
	return run(ctx, func() error {
		return a.c.doJSON(ctx, http.MethodDelete, u, nil, nil)
	}, a.retry, true)
}

// Set sets the role for the given entity.
func (a *ACLHandle) Set(ctx context.Context, entity ACLEntity, role ACLRole) (err error) {
	ctx = startSpan(ctx, "ACL.Set")
	defer func() { endSpan(ctx, err) }()

	u := a.url(string(entity))
	if a.object != "" || a.isDefault {
		acl := &raw.ObjectAccessControl{
			Bucket: a.bucket,
			Entity: string(entity),
			Role:   string(role),
		}
		return run(ctx, func() error {
			return a.c.doJSON(ctx, http.MethodPut, u, acl, nil)
		}, a.retry, true)
	}
	acl := &raw.BucketAccessControl{
		Bucket: a.bucket,
		Entity: string(entity),
		Role:   string(role),
	}
	return run(ctx, func() error {
		return a.c.doJSON(ctx, http.MethodPut, u, acl, nil)
	}, a.retry, true)
}

// List retrieves ACL entries.
func (a *ACLHandle) List(ctx context.Context) (rules []ACLRule, err error) {
	ctx = startSpan(ctx, "ACL.List")
	defer func() { endSpan(ctx, err) }()

	u := a.url("")
	if a.object != "" || a.isDefault {
		var acls raw.ObjectAccessControls
		err = run(ctx, func() error {
			acls = raw.ObjectAccessControls{}
			return a.c.doJSON(ctx, http.MethodGet, u, nil, &acls)
		}, a.retry, true)
		if err != nil {
			return nil, err
		}
		return toObjectACLRules(acls.Items), nil
	}
	var acls raw.BucketAccessControls
	err = run(ctx, func() error {
		acls = raw.BucketAccessControls{}
		return a.c.doJSON(ctx, http.MethodGet, u, nil, &acls)
	}, a.retry, true)
	if err != nil {
		return nil, err
	}
	return toBucketACLRules(acls.Items), nil
}

// url returns the URL for this handle's ACL collection, or for a single
// entity of it when entity is non-empty.
func (a *ACLHandle) url(entity string) string {
	var elem []string
	switch {
	case a.object != "":
		elem = []string{"o", a.object, "acl"}
	case a.isDefault:
		elem = []string{"defaultObjectAcl"}
	default:
		elem = []string{"acl"}
	}
	if entity != "" {
		elem = append(elem, entity)
	}
	return a.c.bucketURL(a.bucket, elem...)
}

func toObjectACLRules(items []*raw.ObjectAccessControl) []ACLRule {
	var rules []ACLRule
	for _, item := range items {
		rules = append(rules, toObjectACLRule(item))
	}
	return rules
}

func toBucketACLRules(items []*raw.BucketAccessControl) []ACLRule {
	var rules []ACLRule
	for _, item := range items {
		rules = append(rules, toBucketACLRule(item))
	}
	return rules
}

func toObjectACLRule(a *raw.ObjectAccessControl) ACLRule {
	return ACLRule{
		Entity:      ACLEntity(a.Entity),
		EntityID:    a.EntityId,
		Role:        ACLRole(a.Role),
		Domain:      a.Domain,
		Email:       a.Email,
		ProjectTeam: toObjectProjectTeam(a.ProjectTeam),
	}
}

func toBucketACLRule(a *raw.BucketAccessControl) ACLRule {
	return ACLRule{
		Entity:      ACLEntity(a.Entity),
		EntityID:    a.EntityId,
		Role:        ACLRole(a.Role),
		Domain:      a.Domain,
		Email:       a.Email,
		ProjectTeam: toBucketProjectTeam(a.ProjectTeam),
	}
}

func toRawObjectACL(rules []ACLRule) []*raw.ObjectAccessControl {
	if len(rules) == 0 {
		return nil
	}
	r := make([]*raw.ObjectAccessControl, 0, len(rules))
	for _, rule := range rules {
		r = append(r, rule.toRawObjectAccessControl(""))
	}
	return r
}

func toRawBucketACL(rules []ACLRule) []*raw.BucketAccessControl {
	if len(rules) == 0 {
		return nil
	}
	r := make([]*raw.BucketAccessControl, 0, len(rules))
	for _, rule := range rules {
		r = append(r, rule.toRawBucketAccessControl(""))
	}
	return r
}

func (r ACLRule) toRawBucketAccessControl(bucket string) *raw.BucketAccessControl {
	return &raw.BucketAccessControl{
		Bucket: bucket,
		Entity: string(r.Entity),
		Role:   string(r.Role),
		// The other fields are not settable.
	}
}

func (r ACLRule) toRawObjectAccessControl(bucket string) *raw.ObjectAccessControl {
	return &raw.ObjectAccessControl{
		Bucket: bucket,
		Entity: string(r.Entity),
		Role:   string(r.Role),
		// The other fields are not settable.
	}
}

func toBucketProjectTeam(p *raw.BucketAccessControlProjectTeam) *ProjectTeam {
	if p == nil {
		return nil
	}
	return &ProjectTeam{
		ProjectNumber: p.ProjectNumber,
		Team:          p.Team,
	}
}

func toObjectProjectTeam(p *raw.ObjectAccessControlProjectTeam) *ProjectTeam {
	if p == nil {
		return nil
	}
	return &ProjectTeam{
		ProjectNumber: p.ProjectNumber,
		Team:          p.Team,
	}
}
