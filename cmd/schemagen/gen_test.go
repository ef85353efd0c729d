package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corrreia/nativehook/internal/gamedata"
	"github.com/corrreia/nativehook/internal/shared"
)

const input = `
schema:
  CBaseEntity:
    fields:
      m_iHealth: {offset: 0x10, type: int32, networked: true}
      m_hOwner: {offset: 0x14, type: handle}
      m_pTree: {offset: 0x18, type: pointer}
  CPawn:
    parent: CBaseEntity
    fields:
      m_szName: {offset: 0x40, type: "char[32]"}
      m_vecOrigin: {offset: 0x60, type: vector}
`

func TestSchemaFieldToGoName(t *testing.T) {
	cases := map[string]string{
		"m_iHealth":     "Health",
		"m_bIsScoped":   "IsScoped",
		"m_flSpeed":     "Speed",
		"m_vecOrigin":   "Origin",
		"m_szName":      "Name",
		"m_hOwner":      "Owner",
		"m_lifeState":   "LifeState",
		"m_iszPlayerID": "IszPlayerID",
	}
	for in, want := range cases {
		require.Equal(t, want, schemaFieldToGoName(in), in)
	}
}

func TestGenerate(t *testing.T) {
	set, err := gamedata.Parse("core", []byte(input), shared.PlatformLinux)
	require.NoError(t, err)

	classes := processClasses(set)
	require.Len(t, classes, 2)
	require.Equal(t, "CBaseEntity", classes[0].ClassName)
	// pointer has no accessor
	require.Len(t, classes[0].Fields, 2)
	require.Equal(t, "CBaseEntity", classes[1].GoParent)

	var sb strings.Builder
	require.NoError(t, generateCode(&sb, "objects", classes))
	out := sb.String()
	require.Contains(t, out, "package objects")
	require.Contains(t, out, "func (e *CBaseEntity) Health() int32 {")
	require.Contains(t, out, "func (e *CBaseEntity) SetHealth(v int32) error {")
	require.Contains(t, out, "func (e *CBaseEntity) Owner() nativehook.Handle {")
	require.NotContains(t, out, "SetOwner")
	require.Contains(t, out, "func (e *CPawn) CBaseEntity() *CBaseEntity {")
	require.Contains(t, out, "func (e *CPawn) SetName(v string) error {")
}
