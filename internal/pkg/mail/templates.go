package mail

import (
	"bytes"
	"html/template"
)

var redeemTmpl = template.Must(template.New("redeem").Parse(`<!doctype html>
<html>
<body style="font-family: Arial, sans-serif; color: #1f2937;">
  <h2>Your StudyFox Pro is ready</h2>
  <p>A parent bought StudyFox Pro for you. Open the app and enter this code to unlock it:</p>
  <p style="font-size: 22px; font-weight: bold; letter-spacing: 2px;">{{.Code}}</p>
  <p><a href="{{.Link}}">Redeem in the StudyFox app</a></p>
  <p style="color: #6b7280; font-size: 12px;">The code can be used once. If you did not expect this email you can ignore it.</p>
</body>
</html>`))

var inviteTmpl = template.Must(template.New("invite").Parse(`<!doctype html>
<html>
<body style="font-family: Arial, sans-serif; color: #1f2937;">
  <h2>Help your child study with StudyFox Pro</h2>
  <p>{{if .StudentName}}{{.StudentName}}{{else}}Your child{{end}} asked you to unlock StudyFox Pro.</p>
  <p><a href="{{.PurchaseURL}}">See plans and buy Pro</a></p>
  <p style="color: #6b7280; font-size: 12px;">After checkout we email a one-time code that your child enters in the app.</p>
</body>
</html>`))

// RedeemEmailData fills the one-time redemption email.
type RedeemEmailData struct {
	Code string // display form, e.g. ABCD-EFGH
	Link template.URL
}

// ParentInviteData fills the parent invite email.
type ParentInviteData struct {
	StudentName string
	PurchaseURL template.URL
}

// RedeemEmail renders the claim code email for to.
func RedeemEmail(to string, data RedeemEmailData) (Message, error) {
	var buf bytes.Buffer
	if err := redeemTmpl.Execute(&buf, data); err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: "Your StudyFox Pro code", HTML: buf.String()}, nil
}

// ParentInviteEmail renders the invite sent to a parent.
func ParentInviteEmail(to string, data ParentInviteData) (Message, error) {
	var buf bytes.Buffer
	if err := inviteTmpl.Execute(&buf, data); err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: "Your child invited you to StudyFox Pro", HTML: buf.String()}, nil
}
