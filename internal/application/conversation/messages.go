package conversation

// User-facing texts that are not tied to a single stage prompt.
const (
	msgUseButtons   = "Выберите вариант с помощью кнопок ниже."
	msgTryAgain     = "Не получилось, попробуйте ещё раз."
	msgStaleButton  = "⚠️ Эта кнопка устарела. Отправьте /start, чтобы начать заново."
	msgNeedStart    = "Сначала зарегистрируйтесь: отправьте /start."
	msgFetchFailed  = "⚠️ Не удалось получить ваш профиль. Попробуйте позже: /start\n\nВопрос в поддержку можно отправить прямо сейчас."
	msgSyncFailed   = "⚠️ Не удалось сохранить данные: сервис профилей недоступен. Ваши ответы сохранены, попробуйте позже."
	msgFinishStep   = "Сначала завершите текущий шаг, меню будет доступно после него."
	msgNoCancelHere = "Регистрацию нельзя отменить. Заполните данные до конца или отправьте /start, чтобы начать заново."

	msgSchoolNotFound    = "Школа с таким кодом не найдена. Проверьте код и попробуйте ещё раз."
	msgSchoolDuplicate   = "Вы уже состоите в этой школе."
	msgSchoolNotMain     = "Колледж может быть только дополнительной школой. Сначала укажите код основной школы."
	msgSchoolRegularBusy = "Вы уже учитесь в обычной школе."
	msgAdditionalExists  = "У вас уже есть дополнительная школа. Изменить её можно через поддержку."
	msgFeatureOff        = "Эта функция сейчас недоступна."

	msgRegistered     = "🎉 Регистрация завершена!"
	msgSaved          = "✅ Изменения сохранены."
	msgEditCancelled  = "Изменение отменено."
	msgAddCancelled   = "Добавление школы отменено."
	msgBackToMain     = "Возвращаемся в главное меню."
	msgWelcomeBack    = "С возвращением"
	msgSupportSent    = "✅ Ваш запрос отправлен администратору, ожидайте ответа!"
	msgDeletionPrompt = "Отправьте свой ID на платформе TheVuntgram"
	msgDeletionDone   = "✅ Ваш запрос принят, аккаунт будет удален в течение 3 дней."
	msgDeletionCancel = "Запрос отменен. Вы можете отправить обычное сообщение или выбрать другую опцию."

	msgAbout  = "О подробностях вы можете ознакомиться на официальном сайте TheVuntgram:\nhttps://thevuntgram.vercel.app"
	msgDouble = "Нельзя создавать два аккаунта, привязанных к одному пользователю, так как это нарушает правила и может привести к блокировке."
)
