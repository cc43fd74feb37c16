package validation

var messages = map[string]map[string]string{
	FieldFullName:    {"present": "Le nom complet est requis."},
	FieldPhotoID:     {"required": "Une photo de votre pièce d'identité est requise."},
	FieldPickupPoint: {"present": "Le point de rendez-vous est requis."},
	FieldPhone: {
		"present": "Le numéro de téléphone est requis.",
		"phone":   "Veuillez entrer un numéro de téléphone valide.",
	},
	FieldEmail: {
		"present":     "L'email est requis.",
		"loose_email": "L'email est invalide.",
	},
	FieldCardName: {"present": "Le nom sur la carte est requis."},
	FieldCardNumber: {
		"card_present": "Le numéro de carte est requis.",
		"card16":       "Le numéro de carte doit comporter 16 chiffres.",
	},
	FieldExpiryDate: {
		"present":       "La date d'expiration est requise.",
		"expiry_format": "La date d'expiration doit être au format MM/AA.",
		"not_expired":   "La carte a expiré.",
	},
	FieldCVV: {
		"present": "Le CVV est requis.",
		"cvv":     "Le CVV doit comporter 3 ou 4 chiffres.",
	},
	FieldOTP: {
		"present": "L'OTP est requis.",
		"otp":     "L'OTP doit comporter 4 chiffres.",
	},
}

func message(field, tag string) string {
	if m, ok := messages[field][tag]; ok {
		return m
	}
	return field + " est invalide."
}
