package entity

// Actor identifica al llamador ya autenticado: tenant y usuario.
// La capa de identidad lo construye; el núcleo solo revalida la pertenencia a sucursales.
type Actor struct {
	TenantID string
	UserID   string
}
