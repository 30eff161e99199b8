package port

const (
	TypeCart     = "CartNode"
	TypeCartLine = "CartLineNode"
	TypeVariant  = "VariantNode"
	TypeShipment = "ShipmentNode"
)

// IdentityCodec translates opaque client tokens to internal keys.
type IdentityCodec interface {
	Decode(token string) (typeTag string, key string, err error)
	Encode(typeTag, key string) string
}
