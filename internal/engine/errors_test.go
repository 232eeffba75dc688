package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/converge-sh/converge/internal/fsprobe"
)

func TestRunError_ErrorFormat(t *testing.T) {
	ioErr := NewIOFailure("/etc/app.conf", errors.New("read-only filesystem"))
	assert.Equal(t, "IO_FAILURE: filesystem operation failed (path=/etc/app.conf)", ioErr.Error())

	handlerErr := NewHandlerFailure("restart nginx", errors.New("exit status 1"))
	assert.Equal(t, "HANDLER_FAILURE: handler dispatch failed (handler=restart nginx)", handlerErr.Error())

	typeErr := NewUnsupportedPathType("/etc/nginx", fsprobe.TypeDir, KindAbsent)
	assert.Contains(t, typeErr.Error(), "UNSUPPORTED_PATH_TYPE")
	assert.Contains(t, typeErr.Error(), "directory")
	assert.Contains(t, typeErr.Error(), "/etc/nginx")
}

func TestRunError_UnwrapExposesCause(t *testing.T) {
	cause := errors.New("disk gone")
	err := NewIOFailure("/etc/a", cause)

	assert.ErrorIs(t, err, cause)
}

func TestRunError_HelpersSeeThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("apply playbook site.yml: %w", NewRenderFailure("site.conf.tmpl", errors.New("no entry for key")))

	assert.True(t, IsRenderFailure(wrapped))
	assert.False(t, IsIOFailure(wrapped))
	assert.False(t, IsUnsupportedPathType(wrapped))
	assert.False(t, IsHandlerFailure(wrapped))
}

func TestRunError_HelpersSeeThroughJoin(t *testing.T) {
	joined := errors.Join(
		NewHandlerFailure("svc1", errors.New("boom")),
		NewHandlerFailure("svc2", errors.New("bang")),
	)

	assert.True(t, IsHandlerFailure(joined))
}

func TestRunError_HelpersRejectPlainErrors(t *testing.T) {
	plain := errors.New("something else")

	assert.False(t, IsRenderFailure(plain))
	assert.False(t, IsIOFailure(plain))
	assert.False(t, IsUnsupportedPathType(plain))
	assert.False(t, IsHandlerFailure(plain))
}

func TestRenderFailure_IdentifiesTemplate(t *testing.T) {
	err := NewRenderFailure("site.conf.tmpl", errors.New(`map has no entry for key "port"`))

	var re *RunError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, ErrCodeRenderFailure, re.Code)
	assert.Equal(t, "site.conf.tmpl", re.Path)
}
