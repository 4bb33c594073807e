package notify

const emailStyles = `
    body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
    .container { max-width: 600px; margin: 0 auto; padding: 20px; }
    .content { background: #f9f9f9; padding: 30px; border-radius: 0 0 10px 10px; }
    .detail-box { background: white; padding: 20px; margin: 20px 0; border-radius: 8px; border-left: 4px solid #D4AF37; }
    .detail-row { display: flex; justify-content: space-between; padding: 10px 0; border-bottom: 1px solid #eee; }
    .detail-label { font-weight: bold; color: #666; }
    .button { display: inline-block; padding: 12px 30px; background: #D4AF37; color: white; text-decoration: none; border-radius: 6px; margin: 10px 5px; }`

const clientConfirmationTemplate = `<!DOCTYPE html>
<html>
<head>
  <style>` + emailStyles + `
    .header { background: linear-gradient(135deg, #D4AF37 0%, #C5A028 100%); color: white; padding: 30px; text-align: center; border-radius: 10px 10px 0 0; }
    .footer { text-align: center; margin-top: 30px; padding-top: 20px; border-top: 1px solid #ddd; color: #888; font-size: 12px; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">
      <h1>Booking Received</h1>
      <p>Your session is reserved</p>
    </div>
    <div class="content">
      <p>Dear {{.Booking.ClientName}},</p>
      <p>Thank you for booking with {{.Business}}!</p>

      <div class="detail-box">
        <h2 style="margin-top: 0; color: #D4AF37;">Booking Details</h2>
        <div class="detail-row"><span class="detail-label">Service:</span><span>{{.Booking.Service.Name}}</span></div>
        <div class="detail-row"><span class="detail-label">Date:</span><span>{{.Booking.Date}}</span></div>
        <div class="detail-row"><span class="detail-label">Time:</span><span>{{timeLabel .Booking.Time}}</span></div>
        <div class="detail-row"><span class="detail-label">Starting Price:</span><span>{{price .Booking.Service.StartingPrice}}</span></div>
        {{- if .Booking.ClientMessage}}
        <div class="detail-row"><span class="detail-label">Your Message:</span><span>{{.Booking.ClientMessage}}</span></div>
        {{- end}}
      </div>

      <p><strong>Status:</strong> {{if eq .Booking.Status "confirmed"}}Confirmed{{else}}Pending Confirmation{{end}}</p>
      <p>We will contact you shortly to confirm the details and discuss your requirements.</p>

      <p style="margin-top: 30px;">
        <strong>Contact Information:</strong><br>
        Email: {{.Booking.ClientEmail}}<br>
        Phone: {{.Booking.ClientPhone}}
      </p>
      {{- if .ContactEmail}}
      <div style="text-align: center;">
        <a href="mailto:{{.ContactEmail}}" class="button">Contact Us</a>
      </div>
      {{- end}}

      <div class="footer">
        <p><strong>{{.Business}}</strong></p>
        <p>Booking Reference: {{.Booking.ID}}</p>
      </div>
    </div>
  </div>
</body>
</html>
`

const operatorAlertTemplate = `<!DOCTYPE html>
<html>
<head>
  <style>` + emailStyles + `
    .header { background: linear-gradient(135deg, #1a1a1a 0%, #2d2d2d 100%); color: white; padding: 30px; text-align: center; border-radius: 10px 10px 0 0; }
    .urgent { background: #fff3cd; border-left: 4px solid #ffc107; padding: 15px; margin: 20px 0; border-radius: 6px; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">
      <h1>New Booking Request</h1>
      <p>Action Required</p>
    </div>
    <div class="content">
      <div class="urgent"><strong>New booking received!</strong> Please review and confirm.</div>

      <div class="detail-box">
        <h2 style="margin-top: 0; color: #D4AF37;">Booking Information</h2>
        <div class="detail-row"><span class="detail-label">Service:</span><span>{{.Booking.Service.Name}}</span></div>
        <div class="detail-row"><span class="detail-label">Date:</span><span>{{.Booking.Date}}</span></div>
        <div class="detail-row"><span class="detail-label">Time:</span><span>{{timeLabel .Booking.Time}}</span></div>
        <div class="detail-row"><span class="detail-label">Status:</span><span style="color: #ffc107; font-weight: bold;">{{upper .Booking.Status}}</span></div>
      </div>

      <div class="detail-box">
        <h2 style="margin-top: 0; color: #D4AF37;">Client Details</h2>
        <div class="detail-row"><span class="detail-label">Name:</span><span>{{.Booking.ClientName}}</span></div>
        <div class="detail-row"><span class="detail-label">Email:</span><span><a href="mailto:{{.Booking.ClientEmail}}">{{.Booking.ClientEmail}}</a></span></div>
        <div class="detail-row"><span class="detail-label">Phone:</span><span><a href="tel:{{.Booking.ClientPhone}}">{{.Booking.ClientPhone}}</a></span></div>
        {{- if .Booking.ClientMessage}}
        <div class="detail-row"><span class="detail-label">Message:</span><span style="font-style: italic;">"{{.Booking.ClientMessage}}"</span></div>
        {{- end}}
      </div>

      <p style="text-align: center; margin-top: 30px; color: #888; font-size: 12px;">
        Booking Reference: {{.Booking.ID}}<br>
        Please log in to the admin panel to confirm or manage this booking.
      </p>
    </div>
  </div>
</body>
</html>
`
